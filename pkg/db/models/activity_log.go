package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is an append-only audit record for auth and admin actions.
type ActivityLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID      *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	Action      string     `gorm:"column:action;not null;index"`
	Description string     `gorm:"column:description;not null"`
	TargetType  *string    `gorm:"column:target_type"`
	TargetID    *uuid.UUID `gorm:"column:target_id;type:uuid"`
	OldValues   *string    `gorm:"column:old_values;type:text"`
	NewValues   *string    `gorm:"column:new_values;type:text"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
