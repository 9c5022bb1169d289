package merchants

import (
	"time"

	"github.com/google/uuid"

	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
)

// MerchantDTO is the transport shape for a merchant profile.
type MerchantDTO struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	BusinessName string     `json:"business_name"`
	Phone        *string    `json:"phone,omitempty"`
	Address      *string    `json:"address,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// CreateMerchantDTO holds the data required to persist a new profile.
type CreateMerchantDTO struct {
	UserID       uuid.UUID
	BusinessName string
	Phone        *string
	Address      *string
}

func FromModel(m *models.Merchant) *MerchantDTO {
	if m == nil {
		return nil
	}
	dto := &MerchantDTO{
		ID:           m.ID,
		UserID:       m.UserID,
		BusinessName: m.BusinessName,
		Phone:        m.Phone,
		Address:      m.Address,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.DeletedAt.Valid {
		deletedAt := m.DeletedAt.Time
		dto.DeletedAt = &deletedAt
	}
	return dto
}

func FromModels(merchants []models.Merchant) []MerchantDTO {
	out := make([]MerchantDTO, 0, len(merchants))
	for i := range merchants {
		out = append(out, *FromModel(&merchants[i]))
	}
	return out
}

func (c CreateMerchantDTO) ToModel() *models.Merchant {
	return &models.Merchant{
		UserID:       c.UserID,
		BusinessName: c.BusinessName,
		Phone:        c.Phone,
		Address:      c.Address,
	}
}
