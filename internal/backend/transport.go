package backend

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/alumon/ui-gateway/internal/errors"
	"github.com/alumon/ui-gateway/internal/observability/metrics"
	"github.com/alumon/ui-gateway/internal/ports"
)

type contextKey string

const sessionIDKey contextKey = "backend.sessionID"

// WithSessionID tags a request context with the gateway session the
// request is performed on behalf of. The transport uses it to look up
// the session's access token and to key refresh coalescing.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFrom extracts the session id set by WithSessionID.
func SessionIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// Refresher exchanges an expired access token for a fresh one. Concurrent
// callers for the same session are coalesced into a single backend
// refresh call; every caller receives the same outcome. On refresh
// failure the session's stored tokens are cleared so guards treat it as
// logged out.
type Refresher struct {
	backend ports.AuthBackend
	tokens  ports.TokenStore
	group   singleflight.Group
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.AuthMetrics
}

// RefresherOptions configures a Refresher.
type RefresherOptions struct {
	Backend ports.AuthBackend
	Tokens  ports.TokenStore
	// Timeout bounds the whole refresh exchange. A refresh that never
	// resolves would otherwise wedge every coalesced caller.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.AuthMetrics
}

// NewRefresher creates a Refresher.
func NewRefresher(opts RefresherOptions) *Refresher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		backend: opts.Backend,
		tokens:  opts.Tokens,
		timeout: timeout,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Refresh returns a usable access token for the session, performing at
// most one backend refresh call no matter how many goroutines observe
// the expiry concurrently. staleAccess is the token the caller was
// rejected with; if the store already holds a different token, a sibling
// caller won the race and no backend call is made.
func (r *Refresher) Refresh(ctx context.Context, sessionID, staleAccess string) (string, error) {
	result, err, shared := r.group.Do(sessionID, func() (any, error) {
		return r.doRefresh(sessionID, staleAccess)
	})
	if shared {
		r.metrics.RefreshCoalesced()
	}
	if err != nil {
		return "", err
	}
	// The shared flight runs detached from any single caller; honor this
	// caller's own cancellation separately.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", apperrors.Wrap(ctxErr, apperrors.ErrCodeCanceled, "request canceled")
	}
	return result.(string), nil
}

func (r *Refresher) doRefresh(sessionID, staleAccess string) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	bundle, err := r.tokens.Read(ctx, sessionID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "read token bundle")
	}

	// A sibling flight may have rotated the token between this caller's
	// 401 and its turn in the group.
	if bundle.AccessToken != "" && bundle.AccessToken != staleAccess {
		return bundle.AccessToken, nil
	}

	if bundle.RefreshToken == "" {
		r.clearSession(sessionID, "no refresh token")
		return "", apperrors.Unauthorized("session has no refresh token")
	}

	pair, err := r.backend.RefreshToken(ctx, bundle.RefreshToken)
	if err != nil {
		r.metrics.RefreshFailed()
		r.clearSession(sessionID, "refresh rejected")
		r.logger.Warn("token refresh failed", "session_id", sessionID, "error", err)
		return "", apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "token refresh failed")
	}

	bundle.AccessToken = pair.Access
	if pair.Refresh != "" {
		bundle.RefreshToken = pair.Refresh
	}
	bundle.SavedAt = time.Now().UTC()
	if err := r.tokens.Save(ctx, sessionID, bundle); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "save refreshed tokens")
	}

	r.metrics.RefreshIssued()
	r.logger.Debug("access token refreshed", "session_id", sessionID)
	return pair.Access, nil
}

func (r *Refresher) clearSession(sessionID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tokens.Clear(ctx, sessionID); err != nil {
		r.logger.Error("clear session after refresh failure", "session_id", sessionID, "reason", reason, "error", err)
	}
}

// AuthTransport is an http.RoundTripper that attaches the session's
// bearer token and transparently recovers from access token expiry: a
// 401 response triggers one refresh (coalesced per session) and one
// retry of the original request. A second 401 is returned to the caller
// untouched. Requests without a session id, and requests to the auth
// endpoints themselves, pass through unmodified.
type AuthTransport struct {
	Base      http.RoundTripper
	Tokens    ports.TokenStore
	Refresher *Refresher
	Logger    *slog.Logger
}

// NewHTTPClient builds an *http.Client whose transport performs bearer
// attachment and the 401 refresh protocol.
func NewHTTPClient(tokens ports.TokenStore, refresher *Refresher, logger *slog.Logger, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &AuthTransport{
			Tokens:    tokens,
			Refresher: refresher,
			Logger:    logger,
		},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	sessionID, ok := SessionIDFrom(req.Context())
	if !ok || isAuthPath(req.URL.Path) {
		return base.RoundTrip(req)
	}

	access := t.readAccess(req.Context(), sessionID)
	attempt := req.Clone(req.Context())
	if access != "" {
		attempt.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := base.RoundTrip(attempt)
	if err != nil {
		// Transport failures say nothing about token validity; never
		// refresh or clear on them.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || access == "" {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// The body was consumed by the first attempt and cannot be
		// replayed.
		return resp, nil
	}

	fresh, refreshErr := t.Refresher.Refresh(req.Context(), sessionID, access)
	if refreshErr != nil {
		t.logger().Debug("refresh after 401 failed", "session_id", sessionID, "error", refreshErr)
		return resp, nil
	}
	closeBody(resp)

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, bodyErr
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)
	return base.RoundTrip(retry)
}

func (t *AuthTransport) readAccess(ctx context.Context, sessionID string) string {
	bundle, err := t.Tokens.Read(ctx, sessionID)
	if err != nil {
		t.logger().Warn("read token bundle", "session_id", sessionID, "error", err)
		return ""
	}
	return bundle.AccessToken
}

func (t *AuthTransport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// isAuthPath reports whether a path belongs to the auth endpoints, which
// are exempt from the refresh protocol: a 401 from login means bad
// credentials, and a refresh call must never trigger another refresh.
func isAuthPath(path string) bool {
	return strings.Contains(path, "/token/") || strings.Contains(path, "/auth/users/") ||
		strings.Contains(path, "/auth/register/")
}
