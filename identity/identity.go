// Package identity is the boundary with the external identity provider.
// The provider is trusted for exactly three claims (email, name, picture)
// and nothing else; authorization state never crosses this boundary.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAssertionInvalid covers malformed, mis-signed, and expired identity
// assertions.
var ErrAssertionInvalid = errors.New("invalid identity assertion")

// Claims are the verified identity attributes inbound from the provider.
type Claims struct {
	Email string
	Name  string
	Image string
}

// Verifier validates an opaque identity assertion and extracts claims.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (Claims, error)
}

type assertionClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier verifies JWT identity assertions signed with a shared
// secret, the exchange format the sign-in endpoint accepts from the
// provider callback.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// TokenConfig configures a TokenVerifier.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// NewTokenVerifier validates cfg and returns a TokenVerifier.
func NewTokenVerifier(cfg TokenConfig) (*TokenVerifier, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("identity secret must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &TokenVerifier{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
	}, nil
}

// Verify parses and validates an assertion, returning its identity claims.
func (v *TokenVerifier) Verify(_ context.Context, assertion string) (Claims, error) {
	if assertion == "" {
		return Claims{}, ErrAssertionInvalid
	}

	parsed := &assertionClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(assertion, parsed, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}
	if parsed.Email == "" {
		return Claims{}, fmt.Errorf("%w: missing email claim", ErrAssertionInvalid)
	}

	return Claims{
		Email: parsed.Email,
		Name:  parsed.Name,
		Image: parsed.Picture,
	}, nil
}

// StaticVerifier resolves assertions from a fixed map. It backs local
// development and tests where no provider is reachable.
type StaticVerifier struct {
	Assertions map[string]Claims
}

// Verify looks the assertion up in the static map.
func (v *StaticVerifier) Verify(_ context.Context, assertion string) (Claims, error) {
	claims, ok := v.Assertions[assertion]
	if !ok || claims.Email == "" {
		return Claims{}, ErrAssertionInvalid
	}
	return claims, nil
}
