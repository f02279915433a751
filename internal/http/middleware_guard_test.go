package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/alumon/ui-gateway/internal/domain/auth"
)

type stubResolver struct {
	sessions map[string]domainauth.Session
	err      error
	calls    int
}

func (s *stubResolver) Resolve(_ context.Context, sessionID string) (domainauth.Session, error) {
	s.calls++
	if session, ok := s.sessions[sessionID]; ok {
		return session, s.err
	}
	return domainauth.Session{ID: sessionID, Role: domainauth.RoleAnonymous}, s.err
}

func sessionFor(role domainauth.Role) domainauth.Session {
	return domainauth.Session{
		ID:       "sess-1",
		Identity: &domainauth.Identity{ID: 1, Username: "u", IsActive: true},
		Role:     role,
	}
}

func guardedRequest(t *testing.T, guard func(http.Handler) http.Handler, path string, withCookie bool) *httptest.ResponseRecorder {
	t.Helper()
	var admitted bool
	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admitted = true
		session, ok := SessionFromContext(r.Context())
		assert.True(t, ok, "admitted handlers must find the session in context")
		assert.NotEmpty(t, session.ID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		assert.True(t, admitted)
	}
	return rec
}

func TestGuardDecisionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		requirement domainauth.Requirement
		role        domainauth.Role
		wantStatus  int
		wantTarget  string
	}{
		{"admin on admin route", domainauth.RequireAdmin, domainauth.RoleAdmin, http.StatusOK, ""},
		{"staff on admin route", domainauth.RequireAdmin, domainauth.RoleStaff, http.StatusSeeOther, "/adminlogin"},
		{"user on admin route", domainauth.RequireAdmin, domainauth.RoleUser, http.StatusSeeOther, "/adminlogin"},
		{"staff on staff route", domainauth.RequireStaff, domainauth.RoleStaff, http.StatusOK, ""},
		{"admin on staff route", domainauth.RequireStaff, domainauth.RoleAdmin, http.StatusSeeOther, "/admin-dashboard"},
		{"user on staff route", domainauth.RequireStaff, domainauth.RoleUser, http.StatusSeeOther, "/dashboard"},
		{"user on user route", domainauth.RequireUser, domainauth.RoleUser, http.StatusOK, ""},
		{"admin on user route", domainauth.RequireUser, domainauth.RoleAdmin, http.StatusSeeOther, "/admin-dashboard"},
		{"staff on user route", domainauth.RequireUser, domainauth.RoleStaff, http.StatusSeeOther, "/staff-dashboard"},
		{"user on any-auth route", domainauth.RequireAuthenticated, domainauth.RoleUser, http.StatusOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resolver := &stubResolver{sessions: map[string]domainauth.Session{"sess-1": sessionFor(tc.role)}}
			guard := Guard(GuardConfig{Resolver: resolver}, tc.requirement)

			rec := guardedRequest(t, guard, "/some-page", true)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantTarget != "" {
				assert.Equal(t, tc.wantTarget, rec.Header().Get("Location"))
			}
		})
	}
}

func TestGuardAnonymousRedirects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		requirement domainauth.Requirement
		wantTarget  string
	}{
		{domainauth.RequireAuthenticated, "/login"},
		{domainauth.RequireAdmin, "/adminlogin"},
		{domainauth.RequireStaff, "/stafflogin"},
		{domainauth.RequireUser, "/login"},
	}

	for _, tc := range tests {
		t.Run(string(tc.requirement), func(t *testing.T) {
			t.Parallel()

			guard := Guard(GuardConfig{Resolver: &stubResolver{}}, tc.requirement)
			rec := guardedRequest(t, guard, "/some-page", false)
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tc.wantTarget, rec.Header().Get("Location"))
		})
	}
}

func TestGuardAPIDenialIsJSON(t *testing.T) {
	t.Parallel()

	guard := Guard(GuardConfig{Resolver: &stubResolver{}}, domainauth.RequireAdmin)

	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/admin-panel/users/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redirect_to":"/adminlogin"`)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestGuardReEvaluatesEveryRequest(t *testing.T) {
	t.Parallel()

	resolver := &stubResolver{sessions: map[string]domainauth.Session{"sess-1": sessionFor(domainauth.RoleAdmin)}}
	guard := Guard(GuardConfig{Resolver: resolver}, domainauth.RequireAdmin)

	rec := guardedRequest(t, guard, "/admin-dashboard", true)
	require.Equal(t, http.StatusOK, rec.Code)

	// Session torn down between navigations; the prior admit must not be
	// remembered.
	delete(resolver.sessions, "sess-1")

	rec = guardedRequest(t, guard, "/admin-dashboard", true)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/adminlogin", rec.Header().Get("Location"))
	assert.Equal(t, 2, resolver.calls)
}
