// Package session issues and parses the session token: a signed JWT carried
// in an HttpOnly cookie whose role claim is a time-of-issue copy of the
// store's authoritative role.
//
// The role claim is frozen between issuances. It transitions only at
// sign-in and at an explicit refresh, never per-request; the staleness
// window this opens is closed by the engine's sync probe plus a client
// initiated refresh.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blogorithm/blogorithm/rbac"
)

// CookieName is the session cookie carrying the signed token.
const CookieName = "blogorithm_session"

// ErrTokenInvalid covers malformed, mis-signed, and expired tokens.
var ErrTokenInvalid = errors.New("invalid session token")

// User is the session view exposed to application code.
type User struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Image string    `json:"image,omitempty"`
	Role  rbac.Role `json:"role"`
}

// Claims is the JWT payload of a session token. Role is denormalized state:
// it mirrors the permission store as of issuance time, nothing newer.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// SessionUser converts claims to the application-facing session view.
func (c *Claims) SessionUser() User {
	role, err := rbac.ParseRole(c.Role)
	if err != nil {
		role = rbac.RoleVisitor
	}
	return User{
		Name:  c.Name,
		Email: c.Email,
		Image: c.Image,
		Role:  role,
	}
}

// Config controls token issuance.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Manager signs and verifies session tokens.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a token Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "blogorithm"
	}
	return &Manager{config: cfg}, nil
}

// Issue signs a session token for user. This is the only place a role value
// enters a credential.
func (m *Manager) Issue(user User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Name:  user.Name,
		Image: user.Image,
		Role:  user.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a session token and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.config.Secret, nil
		},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Email == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// TTL reports the configured token lifetime, used for cookie max-age.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}
