// Package rbac defines the role model for the publishing platform: the four
// role levels, the pure role resolver with its primary-admin override, the
// route classes used by the guard, and the named degraded-mode policies.
//
// Nothing in this package performs I/O; the resolver reads through the
// narrow RoleSource interface so it can be exercised with in-memory fakes.
package rbac
