package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/internal/activity"
	"github.com/kiranalabs/merchant-admin-api/internal/authz"
	"github.com/kiranalabs/merchant-admin-api/internal/tokens"
	"github.com/kiranalabs/merchant-admin-api/internal/users"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	"github.com/kiranalabs/merchant-admin-api/pkg/db"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
	"github.com/kiranalabs/merchant-admin-api/pkg/security"
	"gorm.io/gorm"
)

const emailTakenMessage = "users.email_taken"

// RegisterRequest contains the payload for onboarding a new user. Role
// defaults to merchant when omitted.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=admin merchant"`
}

// RegisterService handles the onboarding transaction. Role gating happens
// in the router, not here.
type RegisterService interface {
	Register(ctx context.Context, actorID uuid.UUID, req RegisterRequest) (*AuthResponse, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	Users          *users.Repository
	AccessTokens   *tokens.AccessRepository
	RefreshTokens  *tokens.RefreshRepository
	Recorder       *activity.Recorder
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type registerService struct {
	db          *db.Client
	users       *users.Repository
	access      *tokens.AccessRepository
	refresh     *tokens.RefreshRepository
	recorder    *activity.Recorder
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if params.AccessTokens == nil || params.RefreshTokens == nil {
		return nil, fmt.Errorf("token repositories are required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("activity recorder is required")
	}
	return &registerService{
		db:          params.DB,
		users:       params.Users,
		access:      params.AccessTokens,
		refresh:     params.RefreshTokens,
		recorder:    params.Recorder,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

func (s *registerService) Register(ctx context.Context, actorID uuid.UUID, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	role := enums.RoleMerchant
	if req.Role != "" {
		parsed, err := enums.ParseRole(req.Role)
		if err != nil || !authz.AssignableRole(parsed) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		role = parsed
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	now := time.Now().UTC()
	var (
		user *models.User
		pair tokenPair
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, emailTakenMessage)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err = userRepo.Create(ctx, users.CreateUserDTO{
			Name:         strings.TrimSpace(req.Name),
			Email:        email,
			PasswordHash: passwordHash,
			Role:         role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeValidation, emailTakenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		pair, err = issuePair(ctx, tx, s.access, s.refresh, s.jwtCfg, user, now)
		if err != nil {
			return err
		}

		targetID := user.ID
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionCreate,
			Description: "user registered",
			ActorID:     &actorID,
			TargetType:  "user",
			TargetID:    &targetID,
			NewValues:   map[string]string{"email": email, "role": string(role)},
		})
	})
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  pair.access,
		RefreshToken: pair.refresh,
		User:         users.FromModel(user),
	}, nil
}
