package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	"github.com/alumon/ui-gateway/internal/observability/metrics"
)

// SessionCookieName is the browser cookie carrying the opaque session id.
const SessionCookieName = "session_id"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionResolver restores the session behind a session id. An unknown or
// cleared id resolves to an anonymous session, not an error.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (domainauth.Session, error)
}

// GuardConfig groups the collaborators shared by all guard instances.
type GuardConfig struct {
	Resolver SessionResolver
	Logger   *slog.Logger
	Metrics  *metrics.AuthMetrics
}

// Guard returns a middleware enforcing an access requirement on a route.
// Every request resolves the session from scratch and re-runs the decision
// table; an admit is never cached, so a logout broadcast or token clear is
// honored on the very next navigation. Denials answer a browser navigation
// with a 303 redirect to the decision's target, and an API request with a
// JSON body naming the same target.
func Guard(cfg GuardConfig, requirement domainauth.Requirement) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := resolveSession(r, cfg.Resolver, logger)

			decision := domainauth.Decide(requirement, session.Role)
			if decision.Admit {
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), session)))
				return
			}

			target := decision.Redirect.Path()
			cfg.Metrics.GuardRedirect(string(requirement), string(session.Role), target)
			logger.Debug("guard redirect",
				slog.String("path", r.URL.Path),
				slog.String("requirement", string(requirement)),
				slog.String("role", string(session.Role)),
				slog.String("target", target))

			if wantsJSON(r) {
				status := http.StatusForbidden
				if session.IsAnonymous() {
					status = http.StatusUnauthorized
				}
				WriteJSON(w, status, map[string]string{
					"error":       "access_denied",
					"redirect_to": target,
				})
				return
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
		})
	}
}

func resolveSession(r *http.Request, resolver SessionResolver, logger *slog.Logger) domainauth.Session {
	sessionID := ""
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		sessionID = cookie.Value
	}

	session, err := resolver.Resolve(r.Context(), sessionID)
	if err != nil {
		// Resolve already degraded to an anonymous session; the store
		// problem is worth a log line but not a 500.
		logger.Warn("session resolve failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	return session
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
