package blogorithm

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method runs before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnauthenticated means no valid session credential was presented.
	// Always recoverable by redirecting to sign-in.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the identity is valid but its role is
	// insufficient. Recoverable through the access-request workflow, never
	// by silent escalation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSignInRateLimited is returned when an IP exhausts its sign-in budget.
	ErrSignInRateLimited = errors.New("sign-in rate limited")
	// ErrAccessRequestRateLimited is returned when an email exhausts its
	// access-request budget.
	ErrAccessRequestRateLimited = errors.New("access request rate limited")
	// ErrEmailMismatch is returned when a caller targets an email other
	// than the one in their own session.
	ErrEmailMismatch = errors.New("email does not match session")
	// ErrEmailRequired is returned when a required email argument is empty.
	ErrEmailRequired = errors.New("email required")
	// ErrInvalidRole is returned for role strings outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrAdminImmutable rejects role changes targeting any account that
	// currently resolves to admin, the primary admin included.
	ErrAdminImmutable = errors.New("cannot change admin role")
	// ErrPrimaryAdminOnly rejects operations reserved for the primary admin.
	ErrPrimaryAdminOnly = errors.New("only the primary admin may do this")
	// ErrSetupKeyMissing is returned when admin bootstrap runs without a
	// configured setup key.
	ErrSetupKeyMissing = errors.New("setup key not configured")
	// ErrSetupKeyInvalid is returned when the provided bootstrap key is wrong.
	ErrSetupKeyInvalid = errors.New("invalid setup key")
)
