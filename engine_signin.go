package blogorithm

import (
	"context"
	"errors"
	"fmt"

	"github.com/blogorithm/blogorithm/internal/rate"
	"github.com/blogorithm/blogorithm/rbac"
	"github.com/blogorithm/blogorithm/session"
)

// SignIn exchanges a verified identity assertion for a session token. The
// role claim embedded in the token is resolved against the permission store
// at this moment and then frozen until an explicit refresh.
//
// Role resolution failures do not fail sign-in: identity availability is
// prioritized over authorization correctness, and the fallback is the least
// privileged role (IdentityDegradedPolicy). The failure is logged and
// audited.
func (e *Engine) SignIn(ctx context.Context, assertion string) (string, session.User, error) {
	if e == nil || e.sessions == nil {
		return "", session.User{}, ErrEngineNotReady
	}

	if err := e.limiter.CheckSignIn(ctx, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return "", session.User{}, ErrSignInRateLimited
		}
		// A broken throttle must not take sign-in down with it.
		e.log.Warn("sign-in throttle unavailable", "error", err)
	}

	claims, err := e.verifier.Verify(ctx, assertion)
	if err != nil {
		return "", session.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user := session.User{
		Name:  claims.Name,
		Email: claims.Email,
		Image: claims.Image,
		Role:  e.resolveForIssuance(ctx, claims.Email),
	}

	token, err := e.sessions.Issue(user)
	if err != nil {
		return "", session.User{}, err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: AuditSignIn,
		Subject:   user.Email,
		Role:      user.Role.String(),
		Success:   true,
	})

	return token, user, nil
}

// Session parses a session token and returns the application-facing view.
func (e *Engine) Session(_ context.Context, token string) (session.User, error) {
	if e == nil || e.sessions == nil {
		return session.User{}, ErrEngineNotReady
	}

	claims, err := e.sessions.Parse(token)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return claims.SessionUser(), nil
}

// RefreshSession is the explicit "update" trigger: it re-resolves the
// caller's role against the live store and issues a fresh token embedding
// the result. This is the only way a live session's role claim changes.
func (e *Engine) RefreshSession(ctx context.Context, token string) (string, session.User, error) {
	if e == nil || e.sessions == nil {
		return "", session.User{}, ErrEngineNotReady
	}

	claims, err := e.sessions.Parse(token)
	if err != nil {
		return "", session.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user := claims.SessionUser()
	previous := user.Role
	user.Role = e.resolveForIssuance(ctx, user.Email)

	fresh, err := e.sessions.Issue(user)
	if err != nil {
		return "", session.User{}, err
	}

	if user.Role != previous {
		e.emitAudit(ctx, AuditEvent{
			EventType: AuditSessionRefresh,
			Subject:   user.Email,
			Role:      user.Role.String(),
			Success:   true,
			Metadata:  map[string]string{"previous_role": previous.String()},
		})
	}

	return fresh, user, nil
}

// resolveForIssuance resolves a role for embedding into a credential,
// applying the identity-side degraded policy on failure.
func (e *Engine) resolveForIssuance(ctx context.Context, email string) rbac.Role {
	role, err := rbac.Resolve(ctx, email, e.store)
	if err != nil {
		fallback, _ := rbac.IdentityDegradedPolicy.Fallback()
		e.log.Warn("role resolution degraded at issuance",
			"email", email, "fallback", fallback.String(), "error", err)
		return fallback
	}
	return role
}
