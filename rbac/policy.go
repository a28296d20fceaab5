package rbac

// DegradedPolicy names the behavior of a trust boundary when role
// resolution fails (store unreachable, malformed record).
//
// The two boundaries deliberately fail in opposite directions, and keeping
// them as two named values makes the asymmetry visible at call sites.
type DegradedPolicy int

const (
	// IdentityDegradedPolicy applies at session issuance: authentication
	// stays available and the caller is admitted with the least privilege,
	// RoleVisitor.
	IdentityDegradedPolicy DegradedPolicy = iota
	// GuardDegradedPolicy applies at the route guard: any failure while
	// resolving the caller's credential denies the request.
	GuardDegradedPolicy
)

// Fallback returns the role a degraded boundary should assume, and whether
// the request may proceed at all.
func (p DegradedPolicy) Fallback() (Role, bool) {
	if p == IdentityDegradedPolicy {
		return RoleVisitor, true
	}
	return RoleVisitor, false
}
