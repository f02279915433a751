package auth

// Package auth contains domain-level types for authentication, role
// classification, and route guarding. It is pure and free of
// framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and logging.
// Valid values are defined as constants below.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleAdmin     Role = "admin"
	RoleStaff     Role = "staff"
	RoleUser      Role = "user"
)

// Raw role strings reported by the monitoring backend on the identity
// record. These overlap with the is_superuser/is_staff flags; Classify
// resolves the precedence.
const (
	RawRoleAdmin = "admin"
	RawRoleStaff = "staff"
	RawRoleUser  = "user"
)

// Identity represents the authenticated principal as reported by the
// monitoring backend. The Role field is the backend's raw role string
// ("" means unset/null); it is an input to classification, never an
// authorization decision by itself.
type Identity struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
	IsStaff     bool   `json:"is_staff"`
	Role        string `json:"role,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// TokenBundle is the persisted client state for one browser session: the
// backend token pair plus a cached identity snapshot. Identity may be nil
// when the profile fetch was unavailable or the stored snapshot was
// corrupt; the resolver then falls back to token claims.
type TokenBundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Identity     *Identity `json:"identity,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// IsEmpty reports whether the bundle carries no credentials at all.
func (b TokenBundle) IsEmpty() bool {
	return b.AccessToken == "" && b.RefreshToken == "" && b.Identity == nil
}

// Session is the resolved, in-memory view of "currently logged in" for
// one request: the opaque session ID plus the classified principal.
type Session struct {
	ID       string
	Identity *Identity
	Role     Role
}

// IsAnonymous reports whether the session carries no resolved identity.
func (s Session) IsAnonymous() bool { return s.Role == RoleAnonymous || s.Identity == nil }
