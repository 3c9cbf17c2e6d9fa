package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/config"
)

// Open builds the object store selected by cfg.StorageDriver. The returned
// close func releases driver resources and is always non-nil.
func Open(cfg *config.Config) (ObjectStore, func() error, error) {
	switch cfg.StorageDriver {
	case config.StorageLocal:
		store, err := NewLocalStore(cfg.StoragePath, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	case config.StorageBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating storage directory: %w", err)
		}
		store, err := NewBoltStore(cfg.StoragePath, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
