package models

import (
	"time"

	"splitledger/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables. DeletedAt turns every delete
// into a soft delete, and gorm filters soft-deleted rows from every query.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// All returns every model, in dependency order, for schema auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Group{},
		&GroupMember{},
		&Expense{},
		&ExpenseSplit{},
		&AuditLog{},
	}
}
