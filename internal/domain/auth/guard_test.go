package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_TransitionTable(t *testing.T) {
	tests := []struct {
		name string
		req  Requirement
		role Role
		want Decision
	}{
		// Public routes admit everyone.
		{"public anonymous", RequireNone, RoleAnonymous, Decision{Admit: true}},
		{"public admin", RequireNone, RoleAdmin, Decision{Admit: true}},

		// Any-authenticated routes.
		{"any-auth user", RequireAuthenticated, RoleUser, Decision{Admit: true}},
		{"any-auth staff", RequireAuthenticated, RoleStaff, Decision{Admit: true}},
		{"any-auth admin", RequireAuthenticated, RoleAdmin, Decision{Admit: true}},
		{"any-auth anonymous", RequireAuthenticated, RoleAnonymous, Decision{Redirect: TargetGenericLogin}},

		// Admin-only routes.
		{"admin-only admin", RequireAdmin, RoleAdmin, Decision{Admit: true}},
		{"admin-only anonymous", RequireAdmin, RoleAnonymous, Decision{Redirect: TargetAdminLogin}},
		{"admin-only staff", RequireAdmin, RoleStaff, Decision{Redirect: TargetAdminLogin}},
		{"admin-only user", RequireAdmin, RoleUser, Decision{Redirect: TargetAdminLogin}},

		// Staff-only routes: admins are not shown staff pages.
		{"staff-only staff", RequireStaff, RoleStaff, Decision{Admit: true}},
		{"staff-only admin", RequireStaff, RoleAdmin, Decision{Redirect: TargetAdminDashboard}},
		{"staff-only user", RequireStaff, RoleUser, Decision{Redirect: TargetUserDashboard}},
		{"staff-only anonymous", RequireStaff, RoleAnonymous, Decision{Redirect: TargetStaffLogin}},

		// User-only routes.
		{"user-only user", RequireUser, RoleUser, Decision{Admit: true}},
		{"user-only admin", RequireUser, RoleAdmin, Decision{Redirect: TargetAdminDashboard}},
		{"user-only staff", RequireUser, RoleStaff, Decision{Redirect: TargetStaffDashboard}},
		{"user-only anonymous", RequireUser, RoleAnonymous, Decision{Redirect: TargetGenericLogin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.req, tt.role))
		})
	}
}

func TestDecide_ScenariosThroughClassify(t *testing.T) {
	// role="staff" with both booleans false navigating a staff-only route.
	staffByRole := Identity{Role: RawRoleStaff}
	assert.Equal(t, Decision{Admit: true}, Decide(RequireStaff, Classify(&staffByRole)))

	// Superuser navigating a staff-only route lands on the admin dashboard.
	superuser := Identity{IsSuperuser: true}
	assert.Equal(t, Decision{Redirect: TargetAdminDashboard}, Decide(RequireStaff, Classify(&superuser)))

	// Anonymous session navigating a user-only route.
	assert.Equal(t, Decision{Redirect: TargetGenericLogin}, Decide(RequireUser, Classify(nil)))
}

func TestDecide_UnknownRequirementFailsClosed(t *testing.T) {
	d := Decide(Requirement("nonsense"), RoleAdmin)
	assert.False(t, d.Admit)
	assert.Equal(t, TargetGenericLogin, d.Redirect)
}

func TestTargetPath(t *testing.T) {
	assert.Equal(t, "/adminlogin", TargetAdminLogin.Path())
	assert.Equal(t, "/stafflogin", TargetStaffLogin.Path())
	assert.Equal(t, "/login", TargetGenericLogin.Path())
	assert.Equal(t, "/admin-dashboard", TargetAdminDashboard.Path())
	assert.Equal(t, "/staff-dashboard", TargetStaffDashboard.Path())
	assert.Equal(t, "/dashboard", TargetUserDashboard.Path())
	assert.Equal(t, "/", Target("bogus").Path())
}

func TestLoginTargetFor(t *testing.T) {
	assert.Equal(t, TargetAdminLogin, LoginTargetFor(RequireAdmin))
	assert.Equal(t, TargetStaffLogin, LoginTargetFor(RequireStaff))
	assert.Equal(t, TargetGenericLogin, LoginTargetFor(RequireUser))
	assert.Equal(t, TargetGenericLogin, LoginTargetFor(RequireAuthenticated))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "admitted", Decision{Admit: true}.String())
	assert.Equal(t, "redirected(admin-login)", Decision{Redirect: TargetAdminLogin}.String())
}

func TestTokenBundleIsEmpty(t *testing.T) {
	assert.True(t, TokenBundle{}.IsEmpty())
	assert.False(t, TokenBundle{AccessToken: "a"}.IsEmpty())
	assert.False(t, TokenBundle{Identity: &Identity{ID: 1}}.IsEmpty())
}

func TestSessionIsAnonymous(t *testing.T) {
	assert.True(t, Session{Role: RoleAnonymous}.IsAnonymous())
	assert.True(t, Session{Role: RoleUser}.IsAnonymous()) // no identity attached
	assert.False(t, Session{Role: RoleUser, Identity: &Identity{ID: 1}}.IsAnonymous())
}
