package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/backend;
// orchestration in internal/service.

import (
	"context"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
)

// TokenStore persists the per-session token bundle (access token, refresh
// token, identity snapshot) across page reloads.
//
// Save replaces the whole bundle atomically: a reader never observes a new
// access token next to a stale refresh token. Read returns whatever subset
// is present and must not fail on corrupt stored data; a corrupt identity
// snapshot is returned as an absent identity. Clear is idempotent and
// additionally broadcasts a logout notification for the session so active
// guards re-evaluate immediately rather than on next navigation.
type TokenStore interface {
	Save(ctx context.Context, sessionID string, bundle domainauth.TokenBundle) error
	Read(ctx context.Context, sessionID string) (domainauth.TokenBundle, error)
	Clear(ctx context.Context, sessionID string) error
}

// SessionLister extends a token store with enumeration, used by the
// operator CLI to inspect live sessions. Not all stores must support it.
type SessionLister interface {
	ListSessions(ctx context.Context) ([]string, error)
}

// LogoutEvent is broadcast when a session's credentials are cleared.
type LogoutEvent struct {
	SessionID string
	Reason    string
}

// LogoutBroker distributes logout notifications process-wide (and, for the
// Redis/Postgres brokers, across gateway replicas). Subscribe returns a
// receive channel and a cancel function; the channel is closed after
// cancel or when ctx ends.
type LogoutBroker interface {
	PublishLogout(ctx context.Context, event LogoutEvent) error
	Subscribe(ctx context.Context) (<-chan LogoutEvent, func(), error)
}

// Credentials carries a login attempt.
type Credentials struct {
	Username string
	Password string
}

// TokenPair is the backend's issued token pair. Refresh responses may
// rotate the refresh token; an empty RefreshToken on refresh means "keep
// the current one".
type TokenPair struct {
	Access  string
	Refresh string
}

// AuthBackend is the external REST collaborator that issues and refreshes
// tokens and serves user profiles. The gateway consumes it; it never
// implements its business logic.
type AuthBackend interface {
	// ObtainToken exchanges credentials for a token pair and, when the
	// backend includes it, the user record.
	ObtainToken(ctx context.Context, creds Credentials) (TokenPair, *domainauth.Identity, error)

	// RefreshToken exchanges a refresh token for a new access token and
	// possibly a rotated refresh token.
	RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error)

	// FetchUser retrieves the full profile for a user id using the given
	// access token.
	FetchUser(ctx context.Context, accessToken string, userID int64) (*domainauth.Identity, error)

	// Register creates a new (inactive, pending approval) account.
	Register(ctx context.Context, req RegistrationRequest) error
}

// RegistrationRequest carries a registration form submission, forwarded
// verbatim to the backend.
type RegistrationRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ClaimDecoder recovers minimal identity fields from an access token
// payload without verifying its signature. Decoding is a client-side
// convenience only, never a security boundary: authorization is always
// re-checked server-side per request.
type ClaimDecoder interface {
	DecodeIdentity(accessToken string) (*domainauth.Identity, error)
}
