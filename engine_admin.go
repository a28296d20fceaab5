package blogorithm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/blogorithm/blogorithm/rbac"
	"github.com/blogorithm/blogorithm/store"
)

// AdminsView enumerates admin accounts. Primary marks the bootstrap admin
// email, which appears in the list even before it has a user record.
type AdminsView struct {
	Primary string       `json:"primary,omitempty"`
	Admins  []store.User `json:"admins"`
}

// SetupAdmin performs the one-time bootstrap: it registers the primary
// admin email and provisions its user record with the admin role. The
// configured setup key gates the call; once a primary admin exists every
// further attempt fails regardless of key.
func (e *Engine) SetupAdmin(ctx context.Context, setupKey, email, name string) (*store.User, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	if e.config.Admin.SetupKey == "" {
		return nil, ErrSetupKeyMissing
	}
	if setupKey != e.config.Admin.SetupKey {
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditAdminSetup,
			Subject:   email,
			Success:   false,
			Error:     ErrSetupKeyInvalid.Error(),
		})
		return nil, ErrSetupKeyInvalid
	}
	if email == "" {
		return nil, ErrEmailRequired
	}

	// Claim the primary slot first: if two setups race, exactly one
	// proceeds to provision the record.
	if err := e.store.SetAdminEmail(ctx, email); err != nil {
		return nil, err
	}

	user := &store.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      rbac.RoleAdmin,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := e.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: AuditAdminSetup,
		Subject:   email,
		Role:      rbac.RoleAdmin.String(),
		Success:   true,
	})

	return user, nil
}

// Admins lists admin accounts. Admin callers only.
//
// A primary admin who has never signed in has no user record; a synthesized
// entry keeps them visible in the listing anyway.
func (e *Engine) Admins(ctx context.Context, token string) (*AdminsView, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.requireAdmin(ctx, token); err != nil {
		return nil, err
	}

	primary, err := e.store.AdminEmail(ctx)
	if err != nil {
		return nil, err
	}

	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	view := &AdminsView{Primary: primary}
	primarySeen := false
	for _, u := range users {
		if u.Role == rbac.RoleAdmin || u.Email == primary {
			if u.Email == primary {
				u.Role = rbac.RoleAdmin
				primarySeen = true
			}
			view.Admins = append(view.Admins, u)
		}
	}
	if primary != "" && !primarySeen {
		view.Admins = append(view.Admins, store.User{
			Name:  "Primary Admin",
			Email: primary,
			Role:  rbac.RoleAdmin,
		})
	}

	return view, nil
}

// PromoteAdmin grants the admin role to an email. Only the primary admin
// may mint new admins; stored admins cannot.
func (e *Engine) PromoteAdmin(ctx context.Context, token, email string) (*store.User, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	actor, err := e.requireAdmin(ctx, token)
	if err != nil {
		return nil, err
	}

	primary, err := e.store.AdminEmail(ctx)
	if err != nil {
		return nil, err
	}
	if primary == "" || actor.Email != primary {
		return nil, ErrPrimaryAdminOnly
	}
	if email == "" {
		return nil, ErrEmailRequired
	}

	user, err := e.store.GetUser(ctx, email)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		user = &store.User{
			ID:        uuid.NewString(),
			Email:     email,
			Role:      rbac.RoleAdmin,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.store.SaveUser(ctx, user); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := e.store.SetRole(ctx, email, rbac.RoleAdmin); err != nil {
			return nil, err
		}
		user.Role = rbac.RoleAdmin
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: AuditAdminPromote,
		Actor:     actor.Email,
		Subject:   email,
		Role:      rbac.RoleAdmin.String(),
		Success:   true,
	})

	return user, nil
}
