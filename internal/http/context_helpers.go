package httpx

import (
	"context"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
func SetSessionInContext(ctx context.Context, session domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the resolved session from context and a boolean
// indicating presence. Guarded handlers always find one; handlers outside a
// guard must handle absence.
func SessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return session, ok
}

// SessionIDFromRequestContext returns the session id carried by the resolved
// session, or "" when the request is unguarded or anonymous without a cookie.
func SessionIDFromRequestContext(ctx context.Context) string {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return ""
	}
	return session.ID
}
