package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"gorm.io/gorm"
)

// Well-known action names shared by auth and admin flows.
const (
	ActionLogin         = "login"
	ActionLogout        = "logout"
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionRestore       = "restore"
	ActionPasswordReset = "password_reset"
)

// Entry captures one audit event before persistence. OldValues/NewValues
// are marshalled to JSON text when present.
type Entry struct {
	Action      string
	Description string
	ActorID     *uuid.UUID
	TargetType  string
	TargetID    *uuid.UUID
	OldValues   any
	NewValues   any
}

// Recorder appends audit rows. It is safe to share across services.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder binds a recorder to the provided GORM DB.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// WithTx rebinds the recorder to the provided transaction so audit rows
// commit or roll back with the mutation they describe.
func (r *Recorder) WithTx(tx *gorm.DB) *Recorder {
	if tx == nil {
		return r
	}
	return &Recorder{db: tx}
}

// Record persists one audit entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.Action == "" {
		return fmt.Errorf("activity action is required")
	}

	row := &models.ActivityLog{
		UserID:      entry.ActorID,
		Action:      entry.Action,
		Description: entry.Description,
		TargetID:    entry.TargetID,
	}
	if entry.TargetType != "" {
		targetType := entry.TargetType
		row.TargetType = &targetType
	}

	var err error
	if row.OldValues, err = marshalValues(entry.OldValues); err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	if row.NewValues, err = marshalValues(entry.NewValues); err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	return r.db.WithContext(ctx).Create(row).Error
}

// ListForUser returns the most recent entries recorded for the actor.
func (r *Recorder) ListForUser(ctx context.Context, actorID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.ActivityLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", actorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func marshalValues(values any) (*string, error) {
	if values == nil {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	text := string(raw)
	return &text, nil
}
