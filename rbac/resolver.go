package rbac

import "context"

// RoleSource is the minimal read surface the resolver needs from the
// permission store. Keeping it this narrow lets the resolver stay a pure
// decision procedure that is testable without a Redis transport.
type RoleSource interface {
	AdminEmail(ctx context.Context) (string, error)
	GetRole(ctx context.Context, email string) (Role, error)
}

// Resolve maps an email to its authoritative role.
//
// The primary admin email always resolves to RoleAdmin, bypassing whatever
// the per-user record says. This is the bootstrap escape hatch: the primary
// admin can never be locked out by a diverged store record. Everyone else
// gets the stored role, defaulting to RoleVisitor when no record exists.
func Resolve(ctx context.Context, email string, src RoleSource) (Role, error) {
	adminEmail, err := src.AdminEmail(ctx)
	if err != nil {
		return RoleVisitor, err
	}
	if adminEmail != "" && email == adminEmail {
		return RoleAdmin, nil
	}

	role, err := src.GetRole(ctx, email)
	if err != nil {
		return RoleVisitor, err
	}
	if !role.Valid() {
		return RoleVisitor, nil
	}
	return role, nil
}
