package blogorithm

import (
	"context"
	"fmt"

	"github.com/blogorithm/blogorithm/rbac"
)

// RoleSync is the result of a drift probe: the role frozen in a session
// token compared against the role the store would resolve right now.
type RoleSync struct {
	Email       string    `json:"email"`
	CurrentRole rbac.Role `json:"currentRole"`
	UpdatedRole rbac.Role `json:"updatedRole"`
	RoleUpdated bool      `json:"roleUpdated"`
}

// SyncRole probes whether the session token's frozen role claim has drifted
// from the store. It never mutates anything: a drifted result tells the
// caller to follow up with RefreshSession to commit the new role into a
// fresh token. Splitting probe and commit keeps the read path cheap and the
// credential re-issue explicit.
//
// Unlike issuance, a store failure here is surfaced rather than defaulted:
// reporting "no drift" off a failed read would silently cancel a pending
// sync.
func (e *Engine) SyncRole(ctx context.Context, token string) (RoleSync, error) {
	if e == nil || e.sessions == nil {
		return RoleSync{}, ErrEngineNotReady
	}

	claims, err := e.sessions.Parse(token)
	if err != nil {
		return RoleSync{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	user := claims.SessionUser()

	live, err := rbac.Resolve(ctx, user.Email, e.store)
	if err != nil {
		return RoleSync{}, err
	}

	return RoleSync{
		Email:       user.Email,
		CurrentRole: user.Role,
		UpdatedRole: live,
		RoleUpdated: live != user.Role,
	}, nil
}
