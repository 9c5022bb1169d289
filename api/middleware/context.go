package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiranalabs/merchant-admin-api/internal/authz"
	"github.com/kiranalabs/merchant-admin-api/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
	ctxJTI    contextKey = "token_id"
)

// ActorFromContext returns the authenticated caller seeded by Auth.
func ActorFromContext(ctx context.Context) (authz.Actor, bool) {
	if ctx == nil {
		return authz.Actor{}, false
	}
	id, okID := ctx.Value(ctxUserID).(uuid.UUID)
	role, okRole := ctx.Value(ctxRole).(enums.Role)
	if !okID || !okRole {
		return authz.Actor{}, false
	}
	return authz.Actor{ID: id, Role: role}, true
}

// JTIFromContext returns the access token id for the current request.
func JTIFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	jti, ok := ctx.Value(ctxJTI).(uuid.UUID)
	return jti, ok
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, actor authz.Actor, jti uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.ID)
	ctx = context.WithValue(ctx, ctxRole, actor.Role)
	return context.WithValue(ctx, ctxJTI, jti)
}
