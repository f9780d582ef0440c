package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxCompanyID contextKey = "company_id"
	ctxSessionID contextKey = "session_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func CompanyIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCompanyID).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext returns the visitor session id seeded by the Session
// middleware, or the authenticated token's jti once Auth has run.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithSessionID injects the session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// ActorFromContext reconstructs the authorization actor from the request
// context. Requests that never passed the Auth middleware come back as the
// anonymous actor.
func ActorFromContext(ctx context.Context) authz.Actor {
	rawID := UserIDFromContext(ctx)
	if rawID == "" {
		return authz.AnonymousActor()
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return authz.AnonymousActor()
	}
	actor := authz.Actor{
		UserID: userID,
		Role:   enums.Role(RoleFromContext(ctx)),
	}
	if raw := CompanyIDFromContext(ctx); raw != "" {
		if companyID, err := uuid.Parse(raw); err == nil {
			actor.CompanyID = &companyID
		}
	}
	return actor
}
