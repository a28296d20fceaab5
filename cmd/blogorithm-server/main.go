package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/blogorithm/blogorithm"
	"github.com/blogorithm/blogorithm/cms"
	"github.com/blogorithm/blogorithm/httpapi"
	"github.com/blogorithm/blogorithm/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found; relying on existing environment")
	}

	log := logger.New(logger.Config{
		Level: os.Getenv("LOG_LEVEL"),
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	})

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log logger.Logger) error {
	redisURL := envDefault("REDIS_URL", "redis://localhost:6379")
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	engine, err := blogorithm.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuditSink(blogorithm.NewJSONWriterSink(os.Stdout)).
		WithLogger(log).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var posts *cms.PostService
	if base := os.Getenv("CMS_BASE_URL"); base != "" {
		client, err := cms.NewHTTPClient(cms.HTTPConfig{
			BaseURL: base,
			Dataset: envDefault("CMS_DATASET", "production"),
			Token:   os.Getenv("CMS_TOKEN"),
		})
		if err != nil {
			return fmt.Errorf("cms client: %w", err)
		}
		posts = cms.NewPostService(client)
	} else {
		log.Warn("CMS_BASE_URL not set, running with in-memory content store")
		posts = cms.NewPostService(cms.NewMemoryClient())
	}

	api := httpapi.NewServer(engine, posts, log, httpapi.Config{
		CookieSecure: os.Getenv("COOKIE_SECURE") == "true",
	})

	addr := ":" + envDefault("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if dropped := engine.AuditDropped(); dropped > 0 {
		log.Warn("audit events dropped during lifetime", "count", dropped)
	}
	return nil
}

func configFromEnv() (blogorithm.Config, error) {
	var cfg blogorithm.Config

	cfg.Session.Secret = []byte(os.Getenv("SESSION_SECRET"))
	cfg.Session.Issuer = envDefault("SESSION_ISSUER", "blogorithm")
	cfg.Session.TTL = envDuration("SESSION_TTL", 24*time.Hour)

	cfg.Identity.Secret = []byte(os.Getenv("IDENTITY_SECRET"))
	cfg.Identity.Issuer = os.Getenv("IDENTITY_ISSUER")
	cfg.Identity.Audience = os.Getenv("IDENTITY_AUDIENCE")

	cfg.Admin.SetupKey = os.Getenv("ADMIN_SETUP_KEY")

	cfg.Throttle.MaxSignInAttempts = envInt("SIGNIN_MAX_ATTEMPTS", 20)
	cfg.Throttle.SignInCooldown = envDuration("SIGNIN_COOLDOWN", time.Minute)
	cfg.Throttle.MaxAccessRequests = envInt("ACCESS_REQUEST_MAX", 5)
	cfg.Throttle.AccessRequestWindow = envDuration("ACCESS_REQUEST_WINDOW", 10*time.Minute)

	cfg.Audit.Enabled = os.Getenv("AUDIT_DISABLED") != "true"
	cfg.Audit.BufferSize = envInt("AUDIT_BUFFER", 256)
	cfg.Audit.DropIfFull = true

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
