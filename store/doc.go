// Package store implements the Redis-backed permission store: user records,
// role assignments, the enumerable users list, and the one-time primary
// admin registration.
//
// One logical fact, a user's role, is kept in three addressable locations
// for different read patterns (user object, dedicated role key, list entry).
// Every write that touches roles runs as a single Lua script so the three
// views stay mutually consistent, and the Inspect operation exposes all
// three views so any drift introduced outside this package stays observable.
package store
