package blogorithm

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/blogorithm/blogorithm/identity"
	"github.com/blogorithm/blogorithm/internal/rate"
	"github.com/blogorithm/blogorithm/logger"
	"github.com/blogorithm/blogorithm/session"
	"github.com/blogorithm/blogorithm/store"
)

// Builder assembles an [Engine]. Configure it once, call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	verifier identity.Verifier
	sink     AuditSink
	log      logger.Logger

	built bool
}

// New returns a Builder loaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the permission store and the
// request throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityVerifier overrides the identity assertion verifier. When not
// set, a token verifier is built from Config.Identity.
func (b *Builder) WithIdentityVerifier(v identity.Verifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets the destination for role-transition audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.log = log
	return b
}

// Build validates the configuration and wires up the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	verifier := b.verifier
	if verifier == nil {
		if len(cfg.Identity.Secret) == 0 {
			return nil, errors.New("identity verifier or identity secret required")
		}
		tv, err := identity.NewTokenVerifier(identity.TokenConfig{
			Secret:   cfg.Identity.Secret,
			Issuer:   cfg.Identity.Issuer,
			Audience: cfg.Identity.Audience,
			Leeway:   cfg.Identity.Leeway,
		})
		if err != nil {
			return nil, err
		}
		verifier = tv
	}

	sessions, err := session.NewManager(session.Config{
		Secret: cfg.Session.Secret,
		Issuer: cfg.Session.Issuer,
		TTL:    cfg.Session.TTL,
	})
	if err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = logger.New(logger.Config{})
	}

	engine := &Engine{
		config:   cfg,
		store:    store.New(b.redis),
		sessions: sessions,
		verifier: verifier,
		limiter: rate.New(b.redis, rate.Config{
			MaxSignInAttempts:   cfg.Throttle.MaxSignInAttempts,
			SignInCooldown:      cfg.Throttle.SignInCooldown,
			MaxAccessRequests:   cfg.Throttle.MaxAccessRequests,
			AccessRequestWindow: cfg.Throttle.AccessRequestWindow,
		}),
		audit: newAuditDispatcher(cfg.Audit, b.sink),
		log:   log,
	}

	b.built = true

	return engine, nil
}
