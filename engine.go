package blogorithm

import (
	"context"
	"time"

	"github.com/blogorithm/blogorithm/identity"
	"github.com/blogorithm/blogorithm/internal/rate"
	"github.com/blogorithm/blogorithm/logger"
	"github.com/blogorithm/blogorithm/session"
	"github.com/blogorithm/blogorithm/store"
)

// Engine is the role-based access control core: it issues session tokens
// with resolved roles, reconciles stale role claims against the store, and
// executes the role-management workflow. Safe for concurrent use after
// [Builder.Build].
type Engine struct {
	config   Config
	store    *store.Store
	sessions *session.Manager
	verifier identity.Verifier
	limiter  *rate.Limiter
	audit    *auditDispatcher
	log      logger.Logger
}

// Store exposes the permission store for wiring (route guard, health).
func (e *Engine) Store() *store.Store {
	if e == nil {
		return nil
	}
	return e.store
}

// Sessions exposes the session token manager, used by the HTTP layer for
// cookie lifetimes.
func (e *Engine) Sessions() *session.Manager {
	if e == nil {
		return nil
	}
	return e.sessions
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	event.Timestamp = time.Now()
	event.IP = clientIPFromContext(ctx)
	event.UserAgent = userAgentFromContext(ctx)
	e.audit.Emit(ctx, event)
}
