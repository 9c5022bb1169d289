package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"gorm.io/gorm"
)

// RefreshRepository persists hashed refresh tokens.
type RefreshRepository struct {
	db *gorm.DB
}

// NewRefreshRepository builds a refresh token repo bound to the provided DB.
func NewRefreshRepository(db *gorm.DB) *RefreshRepository {
	return &RefreshRepository{db: db}
}

// WithTx rebinds the repository to the provided transaction.
func (r *RefreshRepository) WithTx(tx *gorm.DB) *RefreshRepository {
	if tx == nil {
		return r
	}
	return &RefreshRepository{db: tx}
}

// Create inserts a new hashed refresh token row.
func (r *RefreshRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindByHash loads a token row by its stored hash regardless of state.
func (r *RefreshRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Revoke marks the token revoked only when it is still unrevoked. The
// conditional update makes concurrent rotations race safely: exactly one
// caller observes a row change.
func (r *RefreshRepository) Revoke(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		UpdateColumn("revoked_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RevokeAllForUser marks every outstanding token for the user revoked.
func (r *RefreshRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		UpdateColumn("revoked_at", now).Error
}

// DeleteExpired removes rows that expired before the cutoff and can no
// longer be exchanged. Revoked rows are kept for audit.
func (r *RefreshRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&models.RefreshToken{}, "expires_at IS NOT NULL AND expires_at <= ? AND revoked_at IS NULL", cutoff)
	return res.RowsAffected, res.Error
}
