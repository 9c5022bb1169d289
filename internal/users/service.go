package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/internal/activity"
	"github.com/kiranalabs/merchant-admin-api/internal/authz"
	"github.com/kiranalabs/merchant-admin-api/internal/merchants"
	"github.com/kiranalabs/merchant-admin-api/internal/tokens"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	"github.com/kiranalabs/merchant-admin-api/pkg/db"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/kiranalabs/merchant-admin-api/pkg/security"
	"github.com/kiranalabs/merchant-admin-api/pkg/types"
	"gorm.io/gorm"
)

const (
	cannotManageAdminMessage      = "users.cannot_manage_admin"
	cannotCreateAdminMessage      = "users.cannot_create_admin"
	cannotChangeSuperAdminMessage = "users.cannot_change_super_admin"
	cannotDeleteSuperAdminMessage = "users.cannot_delete_super_admin"
	emailTakenMessage             = "users.email_taken"
	notFoundMessage               = "users.not_found"
	currentPasswordWrongMessage   = "settings.current_password_wrong"
)

// CreateUserInput is the admin-facing creation payload.
type CreateUserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=admin merchant"`
}

// UpdateUserInput carries partial updates; nil fields stay untouched.
type UpdateUserInput struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin merchant"`
}

// UpdateProfileInput is the self-service profile payload.
type UpdateProfileInput struct {
	Name string `json:"name" validate:"required"`
}

// ChangePasswordInput is the self-service credential payload.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ListResult pairs a page of users with its pagination meta.
type ListResult struct {
	Users []UserDTO
	Meta  types.Meta
}

// Service exposes the user management surface.
type Service interface {
	List(ctx context.Context, actor authz.Actor, params ListParams) (*ListResult, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*UserDTO, error)
	Create(ctx context.Context, actor authz.Actor, input CreateUserInput) (*UserDTO, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateUserInput) (*UserDTO, error)
	SoftDelete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	Restore(ctx context.Context, actor authz.Actor, id uuid.UUID) (*UserDTO, error)
	MerchantOwners(ctx context.Context, actor authz.Actor) ([]UserDTO, error)

	GetProfile(ctx context.Context, actorID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, actorID uuid.UUID, input UpdateProfileInput) (*UserDTO, error)
	ChangePassword(ctx context.Context, actorID, currentJTI uuid.UUID, input ChangePasswordInput) error
}

// ServiceParams bundles the dependencies for the user service.
type ServiceParams struct {
	DB             *db.Client
	Users          *Repository
	Merchants      *merchants.Repository
	AccessTokens   *tokens.AccessRepository
	Recorder       *activity.Recorder
	PasswordConfig config.PasswordConfig
}

type service struct {
	db          *db.Client
	users       *Repository
	merchants   *merchants.Repository
	access      *tokens.AccessRepository
	recorder    *activity.Recorder
	passwordCfg config.PasswordConfig
}

// NewService constructs the user service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchants repository is required")
	}
	if params.AccessTokens == nil {
		return nil, fmt.Errorf("access token repository is required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("activity recorder is required")
	}
	return &service{
		db:          params.DB,
		users:       params.Users,
		merchants:   params.Merchants,
		access:      params.AccessTokens,
		recorder:    params.Recorder,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *service) List(ctx context.Context, actor authz.Actor, params ListParams) (*ListResult, error) {
	if err := authz.Require(actor.Role, enums.RoleSuperAdmin, enums.RoleAdmin); err != nil {
		return nil, err
	}

	rows, total, err := s.users.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users")
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
		Users: FromModels(rows),
		Meta: types.Meta{
			CurrentPage: page,
			LastPage:    lastPage(total, perPage),
			PerPage:     perPage,
			Total:       total,
		},
	}, nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*UserDTO, error) {
	if err := authz.Require(actor.Role, enums.RoleSuperAdmin, enums.RoleAdmin); err != nil {
		return nil, err
	}

	user, err := s.users.FindByIDAny(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) Create(ctx context.Context, actor authz.Actor, input CreateUserInput) (*UserDTO, error) {
	role := enums.RoleMerchant
	if input.Role != "" {
		parsed, err := enums.ParseRole(input.Role)
		if err != nil || !authz.AssignableRole(parsed) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		role = parsed
	}
	if !authz.CanManageUser(actor.Role, role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, cannotCreateAdminMessage)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, emailTakenMessage)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
		}

		user, err = userRepo.Create(ctx, CreateUserDTO{
			Name:         strings.TrimSpace(input.Name),
			Email:        email,
			PasswordHash: hash,
			Role:         role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeValidation, emailTakenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		actorID := actor.ID
		targetID := user.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionCreate,
			Description: "user created",
			ActorID:     &actorID,
			TargetType:  "user",
			TargetID:    &targetID,
			NewValues:   map[string]string{"name": user.Name, "email": user.Email, "role": string(user.Role)},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, input UpdateUserInput) (*UserDTO, error) {
	var updated *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)

		user, err := userRepo.FindByIDAny(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if !authz.CanManageUser(actor.Role, user.Role) {
			return pkgerrors.New(pkgerrors.CodeForbidden, cannotManageAdminMessage)
		}

		oldValues := map[string]string{
			"name": user.Name, "email": user.Email, "role": string(user.Role),
		}

		if input.Name != nil {
			user.Name = strings.TrimSpace(*input.Name)
		}
		if input.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*input.Email))
			if email != user.Email {
				if _, err := userRepo.FindByEmail(ctx, email); err == nil {
					return pkgerrors.New(pkgerrors.CodeValidation, emailTakenMessage)
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
				}
				user.Email = email
			}
		}
		if input.Role != nil {
			newRole, err := enums.ParseRole(*input.Role)
			if err != nil || !authz.AssignableRole(newRole) {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
			}
			if newRole != user.Role {
				if user.Role == enums.RoleSuperAdmin {
					return pkgerrors.New(pkgerrors.CodeForbidden, cannotChangeSuperAdminMessage)
				}
				if !authz.CanChangeRole(actor.Role, user.Role, newRole) {
					return pkgerrors.New(pkgerrors.CodeForbidden, cannotManageAdminMessage)
				}
				user.Role = newRole
			}
		}
		if input.Password != nil {
			hash, err := security.HashPassword(*input.Password, s.passwordCfg)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
			}
			user.PasswordHash = hash
		}

		if err := userRepo.Save(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeValidation, emailTakenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save user")
		}
		updated = user

		actorID := actor.ID
		targetID := user.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionUpdate,
			Description: "user updated",
			ActorID:     &actorID,
			TargetType:  "user",
			TargetID:    &targetID,
			OldValues:   oldValues,
			NewValues: map[string]string{
				"name": user.Name, "email": user.Email, "role": string(user.Role),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// SoftDelete removes the user and their owned merchant profile in one
// transaction.
func (s *service) SoftDelete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)

		user, err := userRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if user.Role == enums.RoleSuperAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, cannotDeleteSuperAdminMessage)
		}
		if !authz.CanDeleteUser(actor.Role, user.Role) {
			return pkgerrors.New(pkgerrors.CodeForbidden, cannotManageAdminMessage)
		}

		if err := userRepo.SoftDelete(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete user")
		}
		if err := s.merchants.WithTx(tx).SoftDeleteByUserID(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete owned merchant")
		}

		actorID := actor.ID
		targetID := user.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionDelete,
			Description: "user deleted",
			ActorID:     &actorID,
			TargetType:  "user",
			TargetID:    &targetID,
			OldValues:   map[string]string{"email": user.Email, "role": string(user.Role)},
		})
	})
}

// Restore brings a deleted user and their merchant profile back. The
// policy check runs inside the transaction so a disallowed restore rolls
// back to the deleted state.
func (s *service) Restore(ctx context.Context, actor authz.Actor, id uuid.UUID) (*UserDTO, error) {
	var restored *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)

		user, err := userRepo.FindByIDAny(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if !user.DeletedAt.Valid {
			return pkgerrors.New(pkgerrors.CodeValidation, "users.not_deleted")
		}

		if err := userRepo.Restore(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore user")
		}
		if err := s.merchants.WithTx(tx).RestoreByUserID(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore owned merchant")
		}

		if !authz.CanManageUser(actor.Role, user.Role) {
			return pkgerrors.New(pkgerrors.CodeForbidden, cannotManageAdminMessage)
		}

		restored, err = userRepo.FindByID(ctx, user.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload user")
		}

		actorID := actor.ID
		targetID := user.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionRestore,
			Description: "user restored",
			ActorID:     &actorID,
			TargetType:  "user",
			TargetID:    &targetID,
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(restored), nil
}

func (s *service) MerchantOwners(ctx context.Context, actor authz.Actor) ([]UserDTO, error) {
	if err := authz.Require(actor.Role, enums.RoleSuperAdmin, enums.RoleAdmin); err != nil {
		return nil, err
	}
	rows, err := s.users.ListByRole(ctx, enums.RoleMerchant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list merchant owners")
	}
	return FromModels(rows), nil
}

func (s *service) GetProfile(ctx context.Context, actorID uuid.UUID) (*UserDTO, error) {
	user, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, actorID uuid.UUID, input UpdateProfileInput) (*UserDTO, error) {
	var updated *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)

		user, err := userRepo.FindByID(ctx, actorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile")
		}

		oldName := user.Name
		user.Name = strings.TrimSpace(input.Name)
		if err := userRepo.Save(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save profile")
		}
		updated = user

		targetID := user.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionUpdate,
			Description: "profile updated",
			ActorID:     &targetID,
			TargetType:  "user",
			TargetID:    &targetID,
			OldValues:   map[string]string{"name": oldName},
			NewValues:   map[string]string{"name": user.Name},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// ChangePassword verifies the current credential, replaces it, and revokes
// every other access token the caller holds. The session presenting the
// change keeps working.
func (s *service) ChangePassword(ctx context.Context, actorID, currentJTI uuid.UUID, input ChangePasswordInput) error {
	user, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	valid, err := security.VerifyPassword(input.CurrentPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeValidation, currentPasswordWrongMessage)
	}

	hash, err := security.HashPassword(input.NewPassword, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
		}
		if err := s.access.WithTx(tx).DeleteAllForUserExcept(ctx, user.ID, currentJTI); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke other sessions")
		}

		actorRef := user.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionUpdate,
			Description: "password changed",
			ActorID:     &actorRef,
			TargetType:  "user",
			TargetID:    &actorRef,
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
