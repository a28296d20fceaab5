package rbac

import "fmt"

// Role is the authorization level attached to an identity.
//
// Roles are stored as lower-case strings in the permission store and inside
// session token claims, so the zero-ish textual form is the wire form.
type Role string

const (
	// RoleVisitor is the default for identities with no store record.
	RoleVisitor Role = "visitor"
	// RolePending marks an identity that has requested writer access.
	RolePending Role = "pending"
	// RoleWriter can author content.
	RoleWriter Role = "writer"
	// RoleAdmin has full control, including role management.
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RolePending, RoleWriter, RoleAdmin:
		return true
	}
	return false
}

// CanWrite reports whether r may author content.
func (r Role) CanWrite() bool {
	return r == RoleWriter || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// RouteClass is a set of roles required by a guarded route.
type RouteClass int

const (
	// ClassWriter admits writers and admins.
	ClassWriter RouteClass = iota
	// ClassAdmin admits admins only.
	ClassAdmin
)

// Admits reports whether a role satisfies the route class.
func (c RouteClass) Admits(r Role) bool {
	switch c {
	case ClassWriter:
		return r.CanWrite()
	case ClassAdmin:
		return r == RoleAdmin
	}
	return false
}
