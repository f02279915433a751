package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
	"github.com/alumon/ui-gateway/internal/ports"
	"github.com/alumon/ui-gateway/internal/service"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	Login(ctx context.Context, input service.LoginInput) (*domainauth.Session, error)
	Resolve(ctx context.Context, sessionID string) (domainauth.Session, error)
	Logout(ctx context.Context, sessionID, reason string) error
	Register(ctx context.Context, req ports.RegistrationRequest) error
	Profile(ctx context.Context, sessionID string) (*domainauth.Identity, error)
}

// AuthHandlers provides HTTP handlers for login, logout, registration, and
// session status.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	CookieDomain string
	CookieTTL    time.Duration
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginGeneric handles the shared login page. Any account may sign in here;
// the response names the dashboard its role belongs on.
// POST /auth/login.
func (h *AuthHandlers) LoginGeneric(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, domainauth.RequireAuthenticated, "generic")
}

// LoginStaff handles the staff dashboard login page. Accounts that do not
// classify as staff are rejected and their issued tokens torn down.
// POST /auth/login/staff.
func (h *AuthHandlers) LoginStaff(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, domainauth.RequireStaff, "staff")
}

// LoginAdmin handles the admin dashboard login page.
// POST /auth/login/admin.
func (h *AuthHandlers) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, domainauth.RequireAdmin, "admin")
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request, require domainauth.Requirement, dashboard string) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.Svc.Login(r.Context(), service.LoginInput{
		Credentials: ports.Credentials{Username: req.Username, Password: req.Password},
		Require:     require,
		Dashboard:   dashboard,
	})
	if err != nil {
		h.logger().InfoContext(r.Context(), "login rejected",
			"dashboard", dashboard, "username", req.Username, "code", string(apperrors.GetCode(err)))
		WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, r, session.ID)
	WriteJSON(w, http.StatusOK, map[string]any{
		"user":        session.Identity,
		"role":        session.Role,
		"redirect_to": dashboardPathFor(session.Role),
	})
}

// dashboardPathFor returns the landing dashboard for a role.
func dashboardPathFor(role domainauth.Role) string {
	switch role {
	case domainauth.RoleAdmin:
		return domainauth.TargetAdminDashboard.Path()
	case domainauth.RoleStaff:
		return domainauth.TargetStaffDashboard.Path()
	default:
		return domainauth.TargetUserDashboard.Path()
	}
}

// Logout tears the session down and answers with a full-page redirect to
// the login page of the area named by the "from" parameter. Logout never
// fails from the browser's point of view: the cookie is always cleared.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if logoutErr := h.Svc.Logout(r.Context(), cookie.Value, "user"); logoutErr != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
	}
	h.clearCookie(w, r, SessionCookieName)

	target := loginPathFor(r.FormValue("from"))
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out", "redirect_to": target})
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func loginPathFor(area string) string {
	switch area {
	case "admin":
		return domainauth.TargetAdminLogin.Path()
	case "staff":
		return domainauth.TargetStaffLogin.Path()
	default:
		return domainauth.TargetGenericLogin.Path()
	}
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		sessionID = cookie.Value
	}

	session, err := h.Svc.Resolve(r.Context(), sessionID)
	if err != nil {
		h.logger().WarnContext(r.Context(), "status resolve failed", "error", err)
	}
	if session.IsAnonymous() {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          session.Identity,
		"role":          session.Role,
	})
}

// Register forwards a registration form to the backend. A created account
// is inactive until an administrator approves it.
// POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req ports.RegistrationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.Register(r.Context(), req); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{
		"status":  "pending_approval",
		"message": "Account created. An administrator must approve it before you can log in.",
	})
}

// Profile returns the freshly fetched backend profile for the current
// session. Registered behind an any-authenticated guard.
// GET /api/auth/me.
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionIDFromRequestContext(r.Context())
	identity, err := h.Svc.Profile(r.Context(), sessionID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, identity)
}

// setSessionCookie writes the opaque session id cookie. HttpOnly always;
// Secure whenever the request arrived over TLS or a terminating proxy says
// it did.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	}
	if h.CookieTTL > 0 {
		cookie.MaxAge = int(h.CookieTTL.Seconds())
	}
	http.SetCookie(w, cookie)
}

// clearCookie clears a cookie by setting it to expire immediately. It
// mirrors the attributes used when setting cookies so browsers match the
// deletion to the original cookie.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
