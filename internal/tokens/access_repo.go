package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"gorm.io/gorm"
)

// AccessRepository persists the rows backing live bearer tokens.
type AccessRepository struct {
	db *gorm.DB
}

// NewAccessRepository builds an access token repo bound to the provided DB.
func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// WithTx rebinds the repository to the provided transaction.
func (r *AccessRepository) WithTx(tx *gorm.DB) *AccessRepository {
	if tx == nil {
		return r
	}
	return &AccessRepository{db: tx}
}

// Create inserts the row for a freshly minted token. The ID is the JWT jti.
func (r *AccessRepository) Create(ctx context.Context, token *models.AccessToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindLive loads the row for jti when it exists and has not expired.
func (r *AccessRepository) FindLive(ctx context.Context, jti uuid.UUID, now time.Time) (*models.AccessToken, error) {
	var token models.AccessToken
	err := r.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", jti, now).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Delete removes a single token row, revoking that token.
func (r *AccessRepository) Delete(ctx context.Context, jti uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.AccessToken{}, "id = ?", jti).Error
}

// DeleteAllForUser revokes every live token the user holds.
func (r *AccessRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.AccessToken{}, "user_id = ?", userID).Error
}

// DeleteAllForUserExcept revokes every token except the one backing the
// caller's current session.
func (r *AccessRepository) DeleteAllForUserExcept(ctx context.Context, userID, keepJTI uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.AccessToken{}, "user_id = ? AND id <> ?", userID, keepJTI).Error
}

// DeleteExpired clears rows whose tokens can no longer be presented.
func (r *AccessRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&models.AccessToken{}, "expires_at <= ?", now)
	return res.RowsAffected, res.Error
}
