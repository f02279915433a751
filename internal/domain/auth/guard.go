package auth

import "fmt"

// Requirement is the access declaration attached to a navigable route.
type Requirement string

const (
	// RequireNone marks a public route.
	RequireNone Requirement = "none"
	// RequireAuthenticated admits any non-anonymous role.
	RequireAuthenticated Requirement = "any-authenticated"
	// RequireAdmin admits admins only.
	RequireAdmin Requirement = "admin-only"
	// RequireStaff admits staff only; admins are routed to their own
	// dashboard rather than shown staff pages.
	RequireStaff Requirement = "staff-only"
	// RequireUser admits regular users only.
	RequireUser Requirement = "user-only"
)

// Target identifies a full-page navigation destination for a redirect
// decision. Callers translate targets to paths with Path; the guard
// itself never performs navigation.
type Target string

const (
	TargetNone           Target = ""
	TargetGenericLogin   Target = "generic-login"
	TargetStaffLogin     Target = "staff-login"
	TargetAdminLogin     Target = "admin-login"
	TargetUserDashboard  Target = "user-dashboard"
	TargetStaffDashboard Target = "staff-dashboard"
	TargetAdminDashboard Target = "admin-dashboard"
)

// targetPaths mirrors the dashboard router of the monitoring frontend.
var targetPaths = map[Target]string{
	TargetGenericLogin:   "/login",
	TargetStaffLogin:     "/stafflogin",
	TargetAdminLogin:     "/adminlogin",
	TargetUserDashboard:  "/dashboard",
	TargetStaffDashboard: "/staff-dashboard",
	TargetAdminDashboard: "/admin-dashboard",
}

// Path returns the route path for the target, or "/" for an unknown or
// empty target.
func (t Target) Path() string {
	if p, ok := targetPaths[t]; ok {
		return p
	}
	return "/"
}

// LoginTargetFor returns the login page a role-scoped area should send a
// signed-out principal to. Unknown requirements fall back to the generic
// login page.
func LoginTargetFor(req Requirement) Target {
	switch req {
	case RequireAdmin:
		return TargetAdminLogin
	case RequireStaff:
		return TargetStaffLogin
	default:
		return TargetGenericLogin
	}
}

// Decision is the outcome of evaluating one navigation attempt.
// Either Admit is true, or Redirect names where to send the principal.
type Decision struct {
	Admit    bool
	Redirect Target
}

func admit() Decision            { return Decision{Admit: true} }
func redirect(t Target) Decision { return Decision{Redirect: t} }

func (d Decision) String() string {
	if d.Admit {
		return "admitted"
	}
	return fmt.Sprintf("redirected(%s)", d.Redirect)
}

// Decide evaluates a route requirement against a classified role.
// It is pure and re-evaluated on every navigation; callers must not cache
// a prior admit across navigations or logout signals.
func Decide(req Requirement, role Role) Decision {
	switch req {
	case RequireNone:
		return admit()

	case RequireAuthenticated:
		if role != RoleAnonymous {
			return admit()
		}
		return redirect(TargetGenericLogin)

	case RequireAdmin:
		if role == RoleAdmin {
			return admit()
		}
		// Anonymous and mis-roled principals alike go to the admin login.
		return redirect(TargetAdminLogin)

	case RequireStaff:
		switch role {
		case RoleStaff:
			return admit()
		case RoleAdmin:
			return redirect(TargetAdminDashboard)
		case RoleUser:
			return redirect(TargetUserDashboard)
		default:
			return redirect(TargetStaffLogin)
		}

	case RequireUser:
		switch role {
		case RoleUser:
			return admit()
		case RoleAdmin:
			return redirect(TargetAdminDashboard)
		case RoleStaff:
			return redirect(TargetStaffDashboard)
		default:
			return redirect(TargetGenericLogin)
		}

	default:
		// An undeclared requirement fails closed to the generic login.
		return redirect(TargetGenericLogin)
	}
}
