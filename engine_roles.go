package blogorithm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blogorithm/blogorithm/internal/rate"
	"github.com/blogorithm/blogorithm/rbac"
	"github.com/blogorithm/blogorithm/session"
	"github.com/blogorithm/blogorithm/store"
)

// RequestAccess records a writer-access request for the authenticated
// caller. The email argument, when non-empty, must match the session's own
// email; callers can only ever request access for themselves.
//
// A missing user record is created on the spot, so this is also the point
// where most identities first materialize in the store. The operation never
// escalates beyond pending.
func (e *Engine) RequestAccess(ctx context.Context, token, email string) (*store.User, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.sessions.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	sess := claims.SessionUser()
	if sess.Email == "" {
		return nil, ErrEmailRequired
	}
	if email != "" && email != sess.Email {
		return nil, ErrEmailMismatch
	}

	if err := e.limiter.CheckAccessRequest(ctx, sess.Email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return nil, ErrAccessRequestRateLimited
		}
		e.log.Warn("access-request throttle unavailable", "error", err)
	}

	user, err := e.store.GetUser(ctx, sess.Email)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		user = &store.User{
			ID:        uuid.NewString(),
			Name:      sess.Name,
			Email:     sess.Email,
			Image:     sess.Image,
			Role:      rbac.RolePending,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.store.SaveUser(ctx, user); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case user.Role == rbac.RoleVisitor:
		if err := e.store.SetRole(ctx, sess.Email, rbac.RolePending); err != nil {
			return nil, err
		}
		user.Role = rbac.RolePending
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: AuditAccessRequest,
		Actor:     sess.Email,
		Subject:   sess.Email,
		Role:      user.Role.String(),
		Success:   true,
	})

	return user, nil
}

// UpdateRole changes a user's stored role. Admin callers only.
//
// The caller's privilege is re-resolved against the live store rather than
// trusted from the token, so a demoted admin cannot keep mutating roles off
// a stale session. Targets whose resolved role is admin are immutable
// through this path, the primary admin included.
func (e *Engine) UpdateRole(ctx context.Context, adminToken, email string, role rbac.Role) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	actor, err := e.requireAdmin(ctx, adminToken)
	if err != nil {
		return err
	}

	if email == "" {
		return ErrEmailRequired
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	target, err := rbac.Resolve(ctx, email, e.store)
	if err != nil {
		return err
	}
	if target == rbac.RoleAdmin {
		return ErrAdminImmutable
	}

	if err := e.store.SetRole(ctx, email, role); err != nil {
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditRoleUpdate,
			Actor:     actor.Email,
			Subject:   email,
			Role:      role.String(),
			Success:   false,
			Error:     err.Error(),
		})
		return err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: AuditRoleUpdate,
		Actor:     actor.Email,
		Subject:   email,
		Role:      role.String(),
		Success:   true,
		Metadata:  map[string]string{"previous_role": target.String()},
	})

	return nil
}

// ListUsers returns every known user record. Admin callers only.
func (e *Engine) ListUsers(ctx context.Context, adminToken string) ([]store.User, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.requireAdmin(ctx, adminToken); err != nil {
		return nil, err
	}
	return e.store.ListUsers(ctx)
}

// requireAdmin authenticates a token and re-resolves the caller's role
// against the store. Resolution failure denies: a privileged operation
// never proceeds on a guess (GuardDegradedPolicy).
func (e *Engine) requireAdmin(ctx context.Context, token string) (session.User, error) {
	claims, err := e.sessions.Parse(token)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	sess := claims.SessionUser()

	role, err := rbac.Resolve(ctx, sess.Email, e.store)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: role resolution failed: %v", ErrUnauthorized, err)
	}
	if role != rbac.RoleAdmin {
		return session.User{}, ErrUnauthorized
	}
	sess.Role = role
	return sess, nil
}
