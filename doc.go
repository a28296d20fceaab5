// Package blogorithm provides the access-control engine for a multi-author
// blogging platform: Redis-backed role storage, JWT session issuance, and
// the pull-based synchronization that reconciles the two.
//
// Roles live in Redis; session tokens carry a snapshot of the role taken at
// issuance and frozen until the holder explicitly refreshes. [Engine.SyncRole]
// probes for drift between the two and [Engine.RefreshSession] commits it
// into a fresh token. The package is designed for concurrent server
// workloads: Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Degradation policy
//
// The two halves of the system fail in opposite directions. Session
// issuance tolerates a broken store and falls back to the least privileged
// role, so sign-in stays available. Authorization decisions (the route
// guard, every admin-gated Engine method) deny on any failure. The same
// outage therefore narrows what a caller can do, never widens it.
//
// # Architecture boundaries
//
// blogorithm is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (RoleSync, AdminsView, HealthStatus). Role
// semantics live in the rbac package, persistence in store, token encoding
// in session; HTTP concerns stay out of this package entirely and belong
// to middleware and httpapi.
package blogorithm
