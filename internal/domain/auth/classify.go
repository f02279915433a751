package auth

// Classify maps an identity record to exactly one role. It is total (a
// nil identity is anonymous, never an error) and pure, so guards may call
// it independently per request without coordination.
//
// Precedence, applied in order:
//  1. is_superuser          -> admin
//  2. role == "admin"       -> admin
//  3. is_staff or "staff"   -> staff
//  4. any non-nil identity  -> user
//  5. nil                   -> anonymous
//
// The boolean flags and the raw role string overlap and are sometimes
// contradictory on real backend records; this function is the single
// place that resolves them. Nothing else in the codebase branches on the
// raw flags.
func Classify(identity *Identity) Role {
	switch {
	case identity == nil:
		return RoleAnonymous
	case identity.IsSuperuser:
		return RoleAdmin
	case identity.Role == RawRoleAdmin:
		return RoleAdmin
	case identity.IsStaff || identity.Role == RawRoleStaff:
		return RoleStaff
	default:
		return RoleUser
	}
}
