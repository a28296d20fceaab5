package blogorithm

import (
	"errors"
	"time"
)

// Config defines the tunable surface of the platform engine.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Session  SessionConfig
	Identity IdentityConfig
	Admin    AdminConfig
	Throttle ThrottleConfig
	Audit    AuditConfig
}

// SessionConfig controls session token issuance.
type SessionConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// IdentityConfig controls identity assertion verification. Leave Secret
// empty when a Verifier is supplied to the Builder directly.
type IdentityConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// AdminConfig controls primary-admin bootstrap.
type AdminConfig struct {
	// SetupKey gates the one-time admin registration endpoint. Empty
	// disables bootstrap entirely.
	SetupKey string
}

// ThrottleConfig bounds the abuse-prone endpoints.
type ThrottleConfig struct {
	MaxSignInAttempts   int
	SignInCooldown      time.Duration
	MaxAccessRequests   int
	AccessRequestWindow time.Duration
}

// AuditConfig controls the async role-transition audit trail.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull prefers losing audit events over blocking request
	// handlers when the sink cannot keep up.
	DropIfFull bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Issuer: "blogorithm",
			TTL:    24 * time.Hour,
		},
		Throttle: ThrottleConfig{
			MaxSignInAttempts:   20,
			SignInCooldown:      time.Minute,
			MaxAccessRequests:   5,
			AccessRequestWindow: 10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c Config) Validate() error {
	if len(c.Session.Secret) < 32 {
		return errors.New("session secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Identity.Leeway < 0 || c.Identity.Leeway > 2*time.Minute {
		return errors.New("identity leeway out of range")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must not be negative")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.Session.Secret = cloneBytes(c.Session.Secret)
	out.Identity.Secret = cloneBytes(c.Identity.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
