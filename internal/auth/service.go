package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/internal/activity"
	"github.com/kiranalabs/merchant-admin-api/internal/tokens"
	"github.com/kiranalabs/merchant-admin-api/internal/users"
	pkgauth "github.com/kiranalabs/merchant-admin-api/pkg/auth"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	"github.com/kiranalabs/merchant-admin-api/pkg/db"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
	redisclient "github.com/kiranalabs/merchant-admin-api/pkg/redis"
	"github.com/kiranalabs/merchant-admin-api/pkg/security"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "auth.invalid_credentials"
	invalidRefreshMessage     = "auth.invalid_refresh_token"
	invalidResetMessage       = "auth.invalid_token"
	passwordResetSentMessage  = "auth.password_reset_sent"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error)
	Logout(ctx context.Context, actorID uuid.UUID, currentJTI uuid.UUID, req LogoutRequest) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type resetStore interface {
	StoreResetToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) error
	GetResetToken(ctx context.Context, userID string) (string, error)
	DeleteResetToken(ctx context.Context, userID string) error
}

type service struct {
	db          *db.Client
	users       *users.Repository
	access      *tokens.AccessRepository
	refresh     *tokens.RefreshRepository
	recorder    *activity.Recorder
	resets      resetStore
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	DB             *db.Client
	Users          *users.Repository
	AccessTokens   *tokens.AccessRepository
	RefreshTokens  *tokens.RefreshRepository
	Recorder       *activity.Recorder
	ResetStore     resetStore
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if params.AccessTokens == nil {
		return nil, fmt.Errorf("access token repository is required")
	}
	if params.RefreshTokens == nil {
		return nil, fmt.Errorf("refresh token repository is required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("activity recorder is required")
	}
	if params.ResetStore == nil {
		return nil, fmt.Errorf("reset token store is required")
	}
	return &service{
		db:          params.DB,
		users:       params.Users,
		access:      params.AccessTokens,
		refresh:     params.RefreshTokens,
		recorder:    params.Recorder,
		resets:      params.ResetStore,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	var pair tokenPair
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		pair, err = issuePair(ctx, tx, s.access, s.refresh, s.jwtCfg, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	actorID := user.ID
	if err := s.recorder.Record(ctx, activity.Entry{
		Action:      activity.ActionLogin,
		Description: "user logged in",
		ActorID:     &actorID,
	}); err != nil {
		s.warn(ctx, "record login activity failed", err)
	}

	return &AuthResponse{
		AccessToken:  pair.access,
		RefreshToken: pair.refresh,
		User:         users.FromModel(user),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked, every
// access token the user holds is deleted, and a fresh pair is issued. The
// conditional revoke guarantees a token is exchanged at most once even
// under concurrent presentation.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	secret := strings.TrimSpace(req.RefreshToken)
	if secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRefreshToken, invalidRefreshMessage)
	}

	now := time.Now().UTC()
	hash := security.HashTokenSecret(secret)

	var (
		user *models.User
		pair tokenPair
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		refreshRepo := s.refresh.WithTx(tx)

		token, err := refreshRepo.FindByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeInvalidRefreshToken, invalidRefreshMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup refresh token")
		}
		if !token.Usable(now) {
			return pkgerrors.New(pkgerrors.CodeInvalidRefreshToken, invalidRefreshMessage)
		}

		revoked, err := refreshRepo.Revoke(ctx, token.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke refresh token")
		}
		if !revoked {
			return pkgerrors.New(pkgerrors.CodeInvalidRefreshToken, invalidRefreshMessage)
		}

		user, err = s.users.WithTx(tx).FindByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeInvalidRefreshToken, invalidRefreshMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load token owner")
		}

		if err := s.access.WithTx(tx).DeleteAllForUser(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear access tokens")
		}

		pair, err = issuePair(ctx, tx, s.access, s.refresh, s.jwtCfg, user, now)
		return err
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

// Logout clears every credential the caller holds. It is idempotent; a
// second call finds nothing to revoke and still succeeds.
func (s *service) Logout(ctx context.Context, actorID uuid.UUID, currentJTI uuid.UUID, req LogoutRequest) error {
	now := time.Now().UTC()

	if err := s.recorder.Record(ctx, activity.Entry{
		Action:      activity.ActionLogout,
		Description: "user logged out",
		ActorID:     &actorID,
	}); err != nil {
		s.warn(ctx, "record logout activity failed", err)
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		refreshRepo := s.refresh.WithTx(tx)

		if secret := strings.TrimSpace(req.RefreshToken); secret != "" {
			token, err := refreshRepo.FindByHash(ctx, security.HashTokenSecret(secret))
			switch {
			case err == nil && token.UserID == actorID:
				if _, err := refreshRepo.Revoke(ctx, token.ID, now); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke presented token")
				}
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup presented token")
			}
		}

		if err := refreshRepo.RevokeAllForUser(ctx, actorID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke refresh tokens")
		}
		if err := s.access.WithTx(tx).DeleteAllForUser(ctx, actorID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete access tokens")
		}
		return nil
	})
}

// ForgotPassword responds identically for known and unknown emails. The
// reset secret is returned once and only its hash is stored.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ForgotPasswordResponse{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	secret, err := security.GenerateTokenSecret()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
	}

	ttl := s.jwtCfg.ResetTokenTTL()
	if err := s.resets.StoreResetToken(ctx, user.ID.String(), security.HashTokenSecret(secret), ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset token")
	}

	actorID := user.ID
	if err := s.recorder.Record(ctx, activity.Entry{
		Action:      activity.ActionPasswordReset,
		Description: "password reset requested",
		ActorID:     &actorID,
	}); err != nil {
		s.warn(ctx, "record reset request activity failed", err)
	}

	return &ForgotPasswordResponse{ResetToken: secret}, nil
}

// ResetPassword consumes the one-time reset token and replaces the
// credential. All existing sessions are terminated in the same transaction.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	invalid := pkgerrors.New(pkgerrors.CodeValidation, invalidResetMessage)

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	storedHash, err := s.resets.GetResetToken(ctx, user.ID.String())
	if err != nil {
		if redisclient.IsNil(err) {
			return invalid
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reset token")
	}
	if storedHash != security.HashTokenSecret(strings.TrimSpace(req.Token)) {
		return invalid
	}

	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	now := time.Now().UTC()
	actorID := user.ID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
		}
		if err := s.access.WithTx(tx).DeleteAllForUser(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete access tokens")
		}
		if err := s.refresh.WithTx(tx).RevokeAllForUser(ctx, user.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke refresh tokens")
		}
		return s.recorder.WithTx(tx).Record(ctx, activity.Entry{
			Action:      activity.ActionPasswordReset,
			Description: "password reset completed",
			ActorID:     &actorID,
		})
	})
	if err != nil {
		return err
	}

	if err := s.resets.DeleteResetToken(ctx, user.ID.String()); err != nil {
		s.warn(ctx, "delete consumed reset token failed", err)
	}
	return nil
}

type tokenPair struct {
	access  string
	refresh string
}

// issuePair mints one access token (JWT + backing row) and one refresh
// token (hashed row) inside the caller's transaction.
func issuePair(ctx context.Context, tx *gorm.DB, access *tokens.AccessRepository, refresh *tokens.RefreshRepository, jwtCfg config.JWTConfig, user *models.User, now time.Time) (tokenPair, error) {
	jti := uuid.New()

	signed, err := pkgauth.MintAccessToken(jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    jti.String(),
	})
	if err != nil {
		return tokenPair{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	if err := access.WithTx(tx).Create(ctx, &models.AccessToken{
		ID:        jti,
		UserID:    user.ID,
		ExpiresAt: now.Add(jwtCfg.AccessTokenTTL()),
	}); err != nil {
		return tokenPair{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist access token")
	}

	secret, err := security.GenerateTokenSecret()
	if err != nil {
		return tokenPair{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate refresh secret")
	}
	expires := now.Add(jwtCfg.RefreshTokenTTL())
	if err := refresh.WithTx(tx).Create(ctx, &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: security.HashTokenSecret(secret),
		ExpiresAt: &expires,
	}); err != nil {
		return tokenPair{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist refresh token")
	}

	return tokenPair{access: signed, refresh: secret}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := strings.TrimSpace(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredentials, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidCredentials, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredentials, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, fmt.Sprintf("%s: %v", msg, err))
}
