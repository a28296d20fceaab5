// Package rate provides Redis-backed fixed-window counters that throttle
// the abuse-prone endpoints: sign-in assertion exchange and access
// requests. Fixed-window semantics: INCR plus conditional EXPIRE on the
// first hit. Key prefixes:
//   - bs:  sign-in, per IP
//   - bra: access request, per email
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a counter exceeds its budget.
var ErrRateLimited = errors.New("rate limited")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Config holds limiter tuning parameters.
type Config struct {
	MaxSignInAttempts   int
	SignInCooldown      time.Duration
	MaxAccessRequests   int
	AccessRequestWindow time.Duration
}

// DefaultConfig allows a handful of attempts per window, enough for real
// browsers and too few for scripted hammering.
func DefaultConfig() Config {
	return Config{
		MaxSignInAttempts:   20,
		SignInCooldown:      time.Minute,
		MaxAccessRequests:   5,
		AccessRequestWindow: 10 * time.Minute,
	}
}

// Limiter enforces per-IP and per-email budgets with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxSignInAttempts <= 0 {
		cfg.MaxSignInAttempts = DefaultConfig().MaxSignInAttempts
	}
	if cfg.SignInCooldown <= 0 {
		cfg.SignInCooldown = DefaultConfig().SignInCooldown
	}
	if cfg.MaxAccessRequests <= 0 {
		cfg.MaxAccessRequests = DefaultConfig().MaxAccessRequests
	}
	if cfg.AccessRequestWindow <= 0 {
		cfg.AccessRequestWindow = DefaultConfig().AccessRequestWindow
	}
	return &Limiter{redis: redisClient, config: cfg}
}

func signInKey(ip string) string {
	return "bs:" + ip
}

func accessRequestKey(email string) string {
	return "bra:" + email
}

// CheckSignIn records a sign-in attempt for ip and rejects it when the
// window budget is exhausted. Unknown IPs ("" from tests or proxies) are
// not throttled.
func (l *Limiter) CheckSignIn(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, signInKey(ip), l.config.SignInCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSignInAttempts) {
		return ErrRateLimited
	}
	return nil
}

// CheckAccessRequest records an access request for email and rejects it
// when the window budget is exhausted.
func (l *Limiter) CheckAccessRequest(ctx context.Context, email string) error {
	count, err := l.incrementWithTTL(ctx, accessRequestKey(email), l.config.AccessRequestWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAccessRequests) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
