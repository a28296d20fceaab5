package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signAssertion(t *testing.T, secret []byte, email, name string, expires time.Duration) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"name":  name,
		"iat":   now.Unix(),
		"exp":   now.Add(expires).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return signed
}

func TestTokenVerifierAcceptsValidAssertion(t *testing.T) {
	v, err := NewTokenVerifier(TokenConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier failed: %v", err)
	}

	assertion := signAssertion(t, testSecret, "a@x.com", "Alice", time.Minute)
	claims, err := v.Verify(context.Background(), assertion)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Email != "a@x.com" || claims.Name != "Alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenVerifierRejectsWrongSecret(t *testing.T) {
	v, err := NewTokenVerifier(TokenConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier failed: %v", err)
	}

	assertion := signAssertion(t, []byte("ffffffffffffffffffffffffffffffff"), "a@x.com", "Alice", time.Minute)
	if _, err := v.Verify(context.Background(), assertion); !errors.Is(err, ErrAssertionInvalid) {
		t.Fatalf("expected ErrAssertionInvalid, got %v", err)
	}
}

func TestTokenVerifierRejectsExpired(t *testing.T) {
	v, err := NewTokenVerifier(TokenConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier failed: %v", err)
	}

	assertion := signAssertion(t, testSecret, "a@x.com", "Alice", -time.Minute)
	if _, err := v.Verify(context.Background(), assertion); !errors.Is(err, ErrAssertionInvalid) {
		t.Fatalf("expected ErrAssertionInvalid, got %v", err)
	}
}

func TestTokenVerifierRequiresEmail(t *testing.T) {
	v, err := NewTokenVerifier(TokenConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier failed: %v", err)
	}

	assertion := signAssertion(t, testSecret, "", "Nameless", time.Minute)
	if _, err := v.Verify(context.Background(), assertion); !errors.Is(err, ErrAssertionInvalid) {
		t.Fatalf("expected ErrAssertionInvalid, got %v", err)
	}
}

func TestStaticVerifier(t *testing.T) {
	v := &StaticVerifier{Assertions: map[string]Claims{
		"good": {Email: "a@x.com", Name: "Alice"},
	}}

	claims, err := v.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := v.Verify(context.Background(), "bad"); !errors.Is(err, ErrAssertionInvalid) {
		t.Fatalf("expected ErrAssertionInvalid, got %v", err)
	}
}
