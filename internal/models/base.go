package models

import (
	"time"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/ids"

	"gorm.io/gorm"
)

// Base contains common columns for all tables. Records are hard-deleted:
// a deleted project or expense must not be reachable afterwards.
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ids.New()
	}
	return nil
}
