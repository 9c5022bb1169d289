package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessToken tracks a live bearer token. The row ID doubles as the JWT jti,
// so a token is valid only while its row exists and is unexpired. Deleting
// rows revokes tokens immediately.
type AccessToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
