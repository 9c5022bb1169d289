package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/api/responses"
	pkgauth "github.com/kiranalabs/merchant-admin-api/pkg/auth"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	"github.com/kiranalabs/merchant-admin-api/pkg/db/models"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
	"gorm.io/gorm"
)

// AccessSessionChecker verifies that the token id still maps to a live
// server-side session row.
type AccessSessionChecker interface {
	FindLive(ctx context.Context, jti uuid.UUID, now time.Time) (*models.AccessToken, error)
}

// Auth validates a bearer token and seeds the request context with the
// caller identity. A valid signature is not enough: the jti must still
// have a backing row, so logout takes effect immediately.
func Auth(cfg config.JWTConfig, sessions AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthenticated, err, "invalid token"))
				return
			}

			jti, err := uuid.Parse(claims.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing session id"))
				return
			}

			if sessions != nil {
				if _, err := sessions.FindLive(r.Context(), jti, time.Now().UTC()); err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "session unavailable"))
						return
					}
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
			ctx = context.WithValue(ctx, ctxRole, claims.Role)
			ctx = context.WithValue(ctx, ctxJTI, jti)

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    claims.UserID.String(),
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects callers whose role is not in the allowed set.
func RequireRoles(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "missing credentials"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			required := make([]string, 0, len(roles))
			for _, role := range roles {
				required = append(required, string(role))
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.
				New(pkgerrors.CodeForbidden, "role required").
				WithDetails(map[string]any{
					"required_roles": required,
					"user_role":      string(actor.Role),
				}))
		})
	}
}
