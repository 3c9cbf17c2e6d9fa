package storage

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	objectsBucket      = "objects"
	contentTypesBucket = "content_types"
)

// BoltStore implements ObjectStore inside a single bbolt database file.
type BoltStore struct {
	db      *bbolt.DB
	baseURL string
}

// NewBoltStore opens (or creates) the bbolt file at path.
func NewBoltStore(path, baseURL string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{objectsBucket, contentTypesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db, baseURL: baseURL}, nil
}

// Put stores data and its content type in one transaction.
func (b *BoltStore) Put(ctx context.Context, key, contentType string, data []byte) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	contentType = DetectContentType(contentType, data)

	err = b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(objectsBucket)).Put([]byte(cleaned), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(contentTypesBucket)).Put([]byte(cleaned), []byte(contentType))
	})
	if err != nil {
		return Object{}, fmt.Errorf("saving object: %w", err)
	}

	return Object{
		URL:         PublicURL(b.baseURL, cleaned),
		Path:        cleaned,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Get returns a copy of the stored bytes; bbolt memory is only valid inside the transaction.
func (b *BoltStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, "", err
	}

	var data []byte
	var contentType string
	err = b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(objectsBucket)).Get([]byte(cleaned))
		if v == nil {
			return ErrObjectNotFound
		}
		data = append([]byte(nil), v...)
		contentType = string(tx.Bucket([]byte(contentTypesBucket)).Get([]byte(cleaned)))
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// Delete removes the object and its content type.
func (b *BoltStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(objectsBucket)).Delete([]byte(cleaned)); err != nil {
			return err
		}
		return tx.Bucket([]byte(contentTypesBucket)).Delete([]byte(cleaned))
	})
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

// Close closes the database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
