package merchants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/internal/activity"
	"github.com/kiranalabs/merchant-admin-api/internal/authz"
	"github.com/kiranalabs/merchant-admin-api/pkg/db"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/kiranalabs/merchant-admin-api/pkg/types"
	"gorm.io/gorm"
)

const (
	forbiddenViewMessage   = "merchants.forbidden_view"
	forbiddenUpdateMessage = "merchants.forbidden_update"
	forbiddenDeleteMessage = "merchants.forbidden_delete"
	alreadyExistsMessage   = "merchants.already_exists"
	notFoundMessage        = "merchants.not_found"
)

// CreateMerchantInput is the admin-facing creation payload.
type CreateMerchantInput struct {
	UserID       uuid.UUID `json:"user_id" validate:"required"`
	BusinessName string    `json:"business_name" validate:"required"`
	Phone        *string   `json:"phone,omitempty"`
	Address      *string   `json:"address,omitempty"`
}

// UpdateMerchantInput carries partial updates; nil fields stay untouched.
type UpdateMerchantInput struct {
	BusinessName *string `json:"business_name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Address      *string `json:"address,omitempty"`
}

// ListResult pairs a page of merchants with its pagination meta.
type ListResult struct {
	Merchants []MerchantDTO
	Meta      types.Meta
}

// Service exposes the merchant management surface.
type Service interface {
	List(ctx context.Context, actor authz.Actor, params ListParams) (*ListResult, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*MerchantDTO, error)
	Create(ctx context.Context, actor authz.Actor, input CreateMerchantInput) (*MerchantDTO, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateMerchantInput) (*MerchantDTO, error)
	SoftDelete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
}

// ServiceParams bundles the dependencies for the merchant service.
type ServiceParams struct {
	DB        *db.Client
	Merchants *Repository
	Recorder  *activity.Recorder
}

type service struct {
	db        *db.Client
	merchants *Repository
	recorder  *activity.Recorder
}

// NewService constructs the merchant service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchants repository is required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("activity recorder is required")
	}
	return &service{
		db:        params.DB,
		merchants: params.Merchants,
		recorder:  params.Recorder,
	}, nil
}

// List scopes merchant-role callers to their own record; admins see all.
func (s *service) List(ctx context.Context, actor authz.Actor, params ListParams) (*ListResult, error) {
	if actor.Role == enums.RoleMerchant {
		ownerID := actor.ID
		params.OwnerID = &ownerID
	}

	rows, total, err := s.merchants.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list merchants")
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}

	return &ListResult{
		Merchants: FromModels(rows),
		Meta: types.Meta{
			CurrentPage: page,
			LastPage:    lastPage(total, perPage),
			PerPage:     perPage,
			Total:       total,
		},
	}, nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*MerchantDTO, error) {
	merchant, err := s.merchants.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load merchant")
	}
	if !authz.CanViewMerchant(actor.Role, actor.ID, merchant.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenViewMessage)
	}
	return FromModel(merchant), nil
}

func (s *service) Create(ctx context.Context, actor authz.Actor, input CreateMerchantInput) (*MerchantDTO, error) {
	if !authz.CanWriteMerchantLifecycle(actor.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenDeleteMessage)
	}

	var merchant *models.Merchant
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.merchants.WithTx(tx)

		// One profile per owner, counting soft-deleted ones.
		if _, err := repo.FindByUserIDAny(ctx, input.UserID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, alreadyExistsMessage)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check owner")
		}

		created, err := repo.Create(ctx, CreateMerchantDTO{
			UserID:       input.UserID,
			BusinessName: strings.TrimSpace(input.BusinessName),
			Phone:        input.Phone,
			Address:      input.Address,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, alreadyExistsMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create merchant")
		}
		merchant = created

		actorID := actor.ID
		targetID := merchant.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionCreate,
			Description: "merchant created",
			ActorID:     &actorID,
			TargetType:  "merchant",
			TargetID:    &targetID,
			NewValues: map[string]string{
				"user_id":       merchant.UserID.String(),
				"business_name": merchant.BusinessName,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(merchant), nil
}

func (s *service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateMerchantInput) (*MerchantDTO, error) {
	var updated *models.Merchant
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.merchants.WithTx(tx)

		merchant, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load merchant")
		}
		if !authz.CanUpdateMerchant(actor.Role, actor.ID, merchant.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, forbiddenUpdateMessage)
		}

		oldValues := map[string]string{"business_name": merchant.BusinessName}
		if input.BusinessName != nil {
			merchant.BusinessName = strings.TrimSpace(*input.BusinessName)
		}
		if input.Phone != nil {
			merchant.Phone = input.Phone
		}
		if input.Address != nil {
			merchant.Address = input.Address
		}

		if err := repo.Save(ctx, merchant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save merchant")
		}
		updated = merchant

		actorID := actor.ID
		targetID := merchant.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionUpdate,
			Description: "merchant updated",
			ActorID:     &actorID,
			TargetType:  "merchant",
			TargetID:    &targetID,
			OldValues:   oldValues,
			NewValues:   map[string]string{"business_name": merchant.BusinessName},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) SoftDelete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if !authz.CanWriteMerchantLifecycle(actor.Role) {
		return pkgerrors.New(pkgerrors.CodeForbidden, forbiddenDeleteMessage)
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.merchants.WithTx(tx)

		merchant, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load merchant")
		}

		if err := repo.SoftDelete(ctx, merchant.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete merchant")
		}

		actorID := actor.ID
		targetID := merchant.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionDelete,
			Description: "merchant deleted",
			ActorID:     &actorID,
			TargetType:  "merchant",
			TargetID:    &targetID,
			OldValues:   map[string]string{"business_name": merchant.BusinessName},
		})
	})
}

func lastPage(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if pages < 1 {
		return 1
	}
	return pages
}
