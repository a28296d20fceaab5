package blogorithm

import (
	"context"

	"github.com/blogorithm/blogorithm/store"
)

// HealthStatus reports permission-store reachability.
type HealthStatus struct {
	StoreUp      bool   `json:"storeUp"`
	StoreLatency string `json:"storeLatency,omitempty"`
	Error        string `json:"error,omitempty"`
}

// InspectUser returns the raw drift report for an email: all three
// denormalized role views side by side. Admin callers only. Intended for
// operators debugging a desynchronized record, not for application logic.
func (e *Engine) InspectUser(ctx context.Context, adminToken, email string) (*store.InspectReport, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.requireAdmin(ctx, adminToken); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	return e.store.Inspect(ctx, email)
}

// Health pings the permission store and reports round-trip latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{Error: ErrEngineNotReady.Error()}
	}

	latency, err := e.store.Ping(ctx)
	if err != nil {
		return HealthStatus{Error: err.Error()}
	}
	return HealthStatus{StoreUp: true, StoreLatency: latency.String()}
}
