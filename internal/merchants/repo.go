package merchants

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"gorm.io/gorm"
)

// ListParams narrows and pages the merchant listing. OwnerID scopes the
// result to a single owning user when set.
type ListParams struct {
	Search  string
	OwnerID *uuid.UUID
	Page    int
	PerPage int
}

// Repository exposes merchant persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a merchants repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new merchant profile.
func (r *Repository) Create(ctx context.Context, dto CreateMerchantDTO) (*models.Merchant, error) {
	merchant := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(merchant).Error; err != nil {
		return nil, err
	}
	return merchant, nil
}

// FindByID loads a live merchant by UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// FindByUserID loads the live merchant owned by the given user.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.WithContext(ctx).First(&merchant, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// FindByUserIDAny loads the owned merchant regardless of soft-delete state.
func (r *Repository) FindByUserIDAny(ctx context.Context, userID uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).Unscoped().First(&merchant, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

// List returns a page of merchants plus the total for the filter.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Merchant, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Merchant{})
	if params.OwnerID != nil {
		query = query.Where("user_id = ?", *params.OwnerID)
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		query = query.Where("LOWER(business_name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}

	var rows []models.Merchant
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Save persists all fields of the merchant model.
func (r *Repository) Save(ctx context.Context, merchant *models.Merchant) error {
	return r.db.WithContext(ctx).Save(merchant).Error
}

// SoftDelete marks the merchant deleted.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Merchant{}, "id = ?", id).Error
}

// SoftDeleteByUserID marks the user's owned merchant deleted. Used by the
// user lifecycle cascade; missing profile is not an error.
func (r *Repository) SoftDeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Merchant{}, "user_id = ?", userID).Error
}

// RestoreByUserID clears the soft-delete marker on the owned merchant.
func (r *Repository) RestoreByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Merchant{}).
		Where("user_id = ?", userID).
		UpdateColumn("deleted_at", nil).Error
}

// CountLive counts merchants that are not soft-deleted.
func (r *Repository) CountLive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Merchant{}).Count(&count).Error
	return count, err
}

// CountDeleted counts soft-deleted merchants.
func (r *Repository) CountDeleted(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Merchant{}).
		Where("deleted_at IS NOT NULL").
		Count(&count).Error
	return count, err
}

// CountAll counts every merchant row including soft-deleted ones.
func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.Merchant{}).
		Count(&count).Error
	return count, err
}

// Recent returns the newest live merchants.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.Merchant, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []models.Merchant
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
