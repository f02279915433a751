package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
	apperrors "github.com/alumon/ui-gateway/internal/errors"
	mockauth "github.com/alumon/ui-gateway/internal/mocks/auth"
	"github.com/alumon/ui-gateway/internal/ports"
	"github.com/alumon/ui-gateway/internal/service"
)

type authTestEnv struct {
	handlers *AuthHandlers
	store    *mockauth.MemoryTokenStore
	backend  *mockauth.FakeAuthBackend
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()
	store := mockauth.NewMemoryTokenStore()
	backend := mockauth.NewFakeAuthBackend()
	svc := service.NewAuthService(service.AuthServiceOptions{
		Backend: backend,
		Tokens:  store,
	})
	return &authTestEnv{
		handlers: &AuthHandlers{Svc: svc},
		store:    store,
		backend:  backend,
	}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	return nil
}

func TestLoginGenericSetsCookieAndRoutesByRole(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)
	env.backend.DefaultIdentity = domainauth.Identity{ID: 3, Username: "chief", IsSuperuser: true, IsActive: true}

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"chief","password":"pw"}`))
	rec := httptest.NewRecorder()
	env.handlers.LoginGeneric(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	var body struct {
		Role       string `json:"role"`
		RedirectTo string `json:"redirect_to"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "admin", body.Role)
	assert.Equal(t, "/admin-dashboard", body.RedirectTo)

	bundle, err := env.store.Read(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.False(t, bundle.IsEmpty())
}

func TestLoginAdminRejectsRegularUser(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)
	env.backend.DefaultIdentity = domainauth.Identity{ID: 4, Username: "operator1", IsActive: true}

	req := httptest.NewRequest(http.MethodPost, "/auth/login/admin",
		strings.NewReader(`{"username":"operator1","password":"pw"}`))
	rec := httptest.NewRecorder()
	env.handlers.LoginAdmin(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sessionCookie(t, rec))

	ids, err := env.store.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "rejected logins must not leave sessions behind")
}

func TestLoginApprovalPending(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)
	env.backend.ObtainTokenFunc = func(_ context.Context, _ ports.Credentials) (ports.TokenPair, *domainauth.Identity, error) {
		return ports.TokenPair{}, nil, apperrors.ApprovalPending("Account not approved by admin yet")
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"pending","password":"pw"}`))
	rec := httptest.NewRecorder()
	env.handlers.LoginGeneric(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "approval_pending")
}

func TestLoginBackendUnreachable(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)
	env.backend.ObtainTokenFunc = func(_ context.Context, _ ports.Credentials) (ports.TokenPair, *domainauth.Identity, error) {
		return ports.TokenPair{}, nil, apperrors.Unavailable("backend unreachable")
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"u","password":"pw"}`))
	rec := httptest.NewRecorder()
	env.handlers.LoginGeneric(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "unavailable")
}

func TestLogoutClearsCookieAndRedirects(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)
	env.backend.DefaultIdentity = domainauth.Identity{ID: 5, Username: "staffer", IsStaff: true, IsActive: true}

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login/staff",
		strings.NewReader(`{"username":"staffer","password":"pw"}`))
	loginRec := httptest.NewRecorder()
	env.handlers.LoginStaff(loginRec, loginReq)
	require.Equal(t, http.StatusOK, loginRec.Code)
	cookie := sessionCookie(t, loginRec)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout?from=staff", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.handlers.Logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code, "teardown ends in a full page navigation")
	assert.Equal(t, "/stafflogin", rec.Header().Get("Location"))

	cleared := sessionCookie(t, rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	bundle, err := env.store.Read(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.True(t, bundle.IsEmpty())
}

func TestLogoutWithoutSessionStillRedirects(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	env.handlers.Logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)
	env.backend.DefaultIdentity = domainauth.Identity{ID: 6, Username: "operator1", IsActive: true}

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	rec := httptest.NewRecorder()
	env.handlers.Status(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"operator1","password":"pw"}`))
	loginRec := httptest.NewRecorder()
	env.handlers.LoginGeneric(loginRec, loginReq)
	cookie := sessionCookie(t, loginRec)
	require.NotNil(t, cookie)

	req = httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	env.handlers.Status(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
}

func TestRegisterPendingApproval(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"username":"newuser","email":"n@example.com","password":"pw"}`))
	rec := httptest.NewRecorder()
	env.handlers.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending_approval")
}

func TestRegisterFieldError(t *testing.T) {
	t.Parallel()
	env := newAuthTestEnv(t)
	env.backend.RegisterFunc = func(_ context.Context, _ ports.RegistrationRequest) error {
		return apperrors.ValidationField("username", "A user with that username already exists.")
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"username":"taken","email":"t@example.com","password":"pw"}`))
	rec := httptest.NewRecorder()
	env.handlers.Register(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"username"`)
}
