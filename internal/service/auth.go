package service

// Package service orchestrates the gateway's auth flows: login against
// the monitoring backend, session restore from the token store, role
// classification, and session teardown.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
	"github.com/alumon/ui-gateway/internal/observability/metrics"
	"github.com/alumon/ui-gateway/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Backend ports.AuthBackend
	Tokens  ports.TokenStore
	Broker  ports.LogoutBroker
	Claims  ports.ClaimDecoder
	Logger  *slog.Logger
	Metrics *metrics.AuthMetrics

	// CacheTTL bounds how long a resolved session may be served from the
	// in-process cache before re-reading the token store.
	CacheTTL time.Duration
}

// AuthService coordinates the backend, the token store, and the logout
// broker. Resolved sessions are cached briefly; a logout broadcast for a
// session evicts it immediately so guards on every replica observe the
// teardown without waiting for the cache to age out.
type AuthService struct {
	backend ports.AuthBackend
	tokens  ports.TokenStore
	broker  ports.LogoutBroker
	claims  ports.ClaimDecoder
	logger  *slog.Logger
	metrics *metrics.AuthMetrics

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cachedSession
}

type cachedSession struct {
	session   domainauth.Session
	expiresAt time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	claims := opts.Claims
	if claims == nil {
		claims = JWTClaimDecoder{}
	}
	return &AuthService{
		backend:  opts.Backend,
		tokens:   opts.Tokens,
		broker:   opts.Broker,
		claims:   claims,
		logger:   logger,
		metrics:  opts.Metrics,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedSession),
	}
}

// Start subscribes to logout broadcasts and evicts affected sessions
// from the cache until ctx ends. Safe to skip in tests that do not need
// cross-replica eviction.
func (s *AuthService) Start(ctx context.Context) error {
	if s.broker == nil {
		return nil
	}
	events, cancel, err := s.broker.Subscribe(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "subscribe to logout events")
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				s.evict(event.SessionID)
				s.logger.Debug("session evicted on logout broadcast",
					"session_id", event.SessionID, "reason", event.Reason)
			}
		}
	}()
	return nil
}

// LoginInput groups parameters for Login.
type LoginInput struct {
	Credentials ports.Credentials

	// Require is the access level of the dashboard the login page belongs
	// to. A successful backend login whose account does not satisfy it is
	// torn down and rejected, so the admin login page never opens a
	// regular user session.
	Require domainauth.Requirement

	// Dashboard labels the login origin for logs and metrics.
	Dashboard string
}

// Login exchanges credentials for tokens, resolves the account identity,
// and persists a new session. The identity comes from the token response
// when the backend includes it; otherwise it is fetched by the user id
// recovered from the access token claims, and if that fetch fails the
// claim-derived identity alone is kept.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domainauth.Session, error) {
	started := time.Now()
	session, err := s.login(ctx, input)
	s.metrics.Login(input.Dashboard, err, time.Since(started))
	return session, err
}

func (s *AuthService) login(ctx context.Context, input LoginInput) (*domainauth.Session, error) {
	if input.Credentials.Username == "" {
		return nil, apperrors.ValidationField("username", "username is required")
	}
	if input.Credentials.Password == "" {
		return nil, apperrors.ValidationField("password", "password is required")
	}

	pair, identity, err := s.backend.ObtainToken(ctx, input.Credentials)
	if err != nil {
		return nil, err
	}

	if identity == nil {
		identity = s.resolveIdentity(ctx, pair.Access)
	}

	role := domainauth.Classify(identity)
	sessionID := uuid.NewString()

	bundle := domainauth.TokenBundle{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		Identity:     identity,
		SavedAt:      time.Now().UTC(),
	}
	if saveErr := s.tokens.Save(ctx, sessionID, bundle); saveErr != nil {
		return nil, apperrors.Wrap(saveErr, apperrors.ErrCodeInternal, "save session tokens")
	}

	session := domainauth.Session{ID: sessionID, Identity: identity, Role: role}

	if input.Require != domainauth.RequireNone {
		if decision := domainauth.Decide(input.Require, role); !decision.Admit {
			// The backend accepted the credentials but this dashboard's
			// login page must not hand out a session below its level.
			if clearErr := s.tokens.Clear(ctx, sessionID); clearErr != nil {
				s.logger.Error("clear session after role mismatch", "session_id", sessionID, "error", clearErr)
			}
			return nil, apperrors.Unauthorized("account does not have access to this dashboard")
		}
	}

	s.cacheSession(session)
	username := input.Credentials.Username
	if identity != nil && identity.Username != "" {
		username = identity.Username
	}
	s.logger.Info("login succeeded",
		"session_id", sessionID, "username", username, "role", string(role), "dashboard", input.Dashboard)
	return &session, nil
}

// resolveIdentity reconstructs an identity for a fresh token pair when
// the token response carried no user record: decode the access token
// claims for the user id, then try the profile endpoint for the full
// record. Claim fields alone are kept when the profile fetch fails,
// since the token is already proven valid.
func (s *AuthService) resolveIdentity(ctx context.Context, accessToken string) *domainauth.Identity {
	claimed, err := s.claims.DecodeIdentity(accessToken)
	if err != nil {
		s.logger.Warn("decode access token claims", "error", err)
		return nil
	}

	profile, err := s.backend.FetchUser(ctx, accessToken, claimed.ID)
	if err != nil {
		s.logger.Warn("fetch user profile, keeping claim identity", "user_id", claimed.ID, "error", err)
		return claimed
	}
	return profile
}

// Resolve restores the session behind a session id: cache first, then
// the token store. A missing or cleared bundle yields an anonymous
// session rather than an error, so guards can route it to a login page.
// A bundle whose identity snapshot is absent (corrupt, or written by an
// older gateway) is backfilled from access token claims and re-saved.
func (s *AuthService) Resolve(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if sessionID == "" {
		return anonymousSession(""), nil
	}

	if session, ok := s.cachedSession(sessionID); ok {
		return session, nil
	}

	bundle, err := s.tokens.Read(ctx, sessionID)
	if err != nil {
		return anonymousSession(sessionID), apperrors.Wrap(err, apperrors.ErrCodeInternal, "read session tokens")
	}
	if bundle.IsEmpty() {
		return anonymousSession(sessionID), nil
	}

	identity := bundle.Identity
	if identity == nil {
		identity = s.backfillIdentity(ctx, sessionID, bundle)
	}
	if identity == nil {
		return anonymousSession(sessionID), nil
	}

	session := domainauth.Session{ID: sessionID, Identity: identity, Role: domainauth.Classify(identity)}
	s.cacheSession(session)
	return session, nil
}

func (s *AuthService) backfillIdentity(ctx context.Context, sessionID string, bundle domainauth.TokenBundle) *domainauth.Identity {
	identity := s.resolveIdentity(ctx, bundle.AccessToken)
	if identity == nil {
		return nil
	}
	bundle.Identity = identity
	if err := s.tokens.Save(ctx, sessionID, bundle); err != nil {
		s.logger.Warn("persist backfilled identity", "session_id", sessionID, "error", err)
	}
	return identity
}

// Profile fetches the current full profile for the session's user from
// the backend and refreshes the stored snapshot.
func (s *AuthService) Profile(ctx context.Context, sessionID string) (*domainauth.Identity, error) {
	bundle, err := s.tokens.Read(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read session tokens")
	}
	if bundle.IsEmpty() || bundle.Identity == nil {
		return nil, apperrors.Unauthorized("not logged in")
	}

	profile, err := s.backend.FetchUser(ctx, bundle.AccessToken, bundle.Identity.ID)
	if err != nil {
		return nil, err
	}

	bundle.Identity = profile
	if saveErr := s.tokens.Save(ctx, sessionID, bundle); saveErr != nil {
		s.logger.Warn("persist refreshed profile", "session_id", sessionID, "error", saveErr)
	}
	s.cacheSession(domainauth.Session{ID: sessionID, Identity: profile, Role: domainauth.Classify(profile)})
	return profile, nil
}

// Logout tears the session down: clear the stored bundle (which
// broadcasts the logout) and drop the cache entry. Idempotent; logging
// out an unknown session succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID, reason string) error {
	if sessionID == "" {
		return nil
	}
	s.evict(sessionID)
	if err := s.tokens.Clear(ctx, sessionID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "clear session tokens")
	}
	s.metrics.Logout(reason)
	s.logger.Info("session cleared", "session_id", sessionID, "reason", reason)
	return nil
}

// Register forwards a registration request to the backend. The created
// account stays inactive until an administrator approves it; logging in
// before that yields an approval-pending error, not a session.
func (s *AuthService) Register(ctx context.Context, req ports.RegistrationRequest) error {
	if req.Username == "" {
		return apperrors.ValidationField("username", "username is required")
	}
	if req.Email == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if req.Password == "" {
		return apperrors.ValidationField("password", "password is required")
	}
	return s.backend.Register(ctx, req)
}

func (s *AuthService) cacheSession(session domainauth.Session) {
	if session.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[session.ID] = cachedSession{session: session, expiresAt: time.Now().Add(s.cacheTTL)}
}

func (s *AuthService) cachedSession(sessionID string) (domainauth.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[sessionID]
	if !ok {
		return domainauth.Session{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.cache, sessionID)
		return domainauth.Session{}, false
	}
	return entry.session, true
}

func (s *AuthService) evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, sessionID)
}

func anonymousSession(sessionID string) domainauth.Session {
	return domainauth.Session{ID: sessionID, Role: domainauth.RoleAnonymous}
}
