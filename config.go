package gatekit

// Gate configuration. The gate never reads the environment itself: a Config
// is constructed once at startup (FromEnv or by hand), validated, and passed
// into New. An empty RedisURL means the rate-limit backing store is not
// configured, which disables rate limiting rather than failing startup.

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Limit is one classification's rate-limit budget.
type Limit struct {
	MaxRequests int64         `validate:"gt=0"`
	Window      time.Duration `validate:"gt=0"`
}

// Limits holds the four independent per-classification budgets.
type Limits struct {
	API       Limit
	Auth      Limit
	Sensitive Limit
	Upload    Limit
}

// forClass returns the budget applied to API traffic of the given class.
// Protected API routes run on the general api budget.
func (l Limits) forClass(c Class) Limit {
	switch c {
	case ClassAuthAPI:
		return l.Auth
	case ClassSensitiveAPI:
		return l.Sensitive
	case ClassUploadAPI:
		return l.Upload
	default:
		return l.API
	}
}

// Config configures a Gate.
type Config struct {
	// RedisURL and RedisPassword locate the rate-limit counter store.
	// An empty URL disables rate limiting (fail open).
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// SessionCookie is the name of the session cookie. Environment-specific:
	// deployments behind HTTPS typically prefix it with __Secure-.
	SessionCookie string `validate:"required"`

	// LoginPath is where unauthenticated page requests are redirected.
	LoginPath string `validate:"required,startswith=/"`

	Limits Limits
}

// DefaultConfig returns the stock configuration: 60 req/min for general api
// traffic, 10 req/15min for auth flows, 5 req/hour for sensitive operations,
// 20 req/hour for uploads.
func DefaultConfig() Config {
	return Config{
		SessionCookie: "session_token",
		LoginPath:     "/login",
		Limits: Limits{
			API:       Limit{MaxRequests: 60, Window: time.Minute},
			Auth:      Limit{MaxRequests: 10, Window: 15 * time.Minute},
			Sensitive: Limit{MaxRequests: 5, Window: time.Hour},
			Upload:    Limit{MaxRequests: 20, Window: time.Hour},
		},
	}
}

// Validate checks the configuration. Called by New; exposed for callers that
// construct configs from their own sources.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid gate config: %w", err)
	}
	return nil
}

// FromEnv builds a Config from the environment on top of DefaultConfig.
//
// Recognized variables:
//
//	GATE_REDIS_URL        counter store address; empty disables rate limiting
//	GATE_REDIS_PASSWORD   counter store credential
//	GATE_REDIS_DB         counter store database number
//	GATE_SESSION_COOKIE   session cookie name
//	GATE_LOGIN_PATH       redirect target for unauthenticated page requests
//	GATE_LIMIT_API        general api budget as "<max>/<window>", e.g. "60/1m"
//	GATE_LIMIT_AUTH       auth flow budget, e.g. "10/15m"
//	GATE_LIMIT_SENSITIVE  sensitive operation budget, e.g. "5/1h"
//	GATE_LIMIT_UPLOAD     upload budget, e.g. "20/1h"
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.RedisURL = os.Getenv("GATE_REDIS_URL")
	cfg.RedisPassword = os.Getenv("GATE_REDIS_PASSWORD")

	if v := os.Getenv("GATE_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GATE_REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}

	if v := os.Getenv("GATE_SESSION_COOKIE"); v != "" {
		cfg.SessionCookie = v
	}
	if v := os.Getenv("GATE_LOGIN_PATH"); v != "" {
		cfg.LoginPath = v
	}

	limits := []struct {
		env string
		dst *Limit
	}{
		{"GATE_LIMIT_API", &cfg.Limits.API},
		{"GATE_LIMIT_AUTH", &cfg.Limits.Auth},
		{"GATE_LIMIT_SENSITIVE", &cfg.Limits.Sensitive},
		{"GATE_LIMIT_UPLOAD", &cfg.Limits.Upload},
	}
	for _, l := range limits {
		v := os.Getenv(l.env)
		if v == "" {
			continue
		}
		lim, err := parseLimit(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", l.env, err)
		}
		*l.dst = lim
	}

	return cfg, nil
}

// parseLimit parses "<max>/<window>" (e.g. "60/1m", "5/1h").
func parseLimit(s string) (Limit, error) {
	maxPart, windowPart, ok := strings.Cut(s, "/")
	if !ok {
		return Limit{}, fmt.Errorf("limit %q must be in <max>/<window> form", s)
	}

	maxRequests, err := strconv.ParseInt(strings.TrimSpace(maxPart), 10, 64)
	if err != nil {
		return Limit{}, fmt.Errorf("limit %q has a bad max: %w", s, err)
	}

	window, err := time.ParseDuration(strings.TrimSpace(windowPart))
	if err != nil {
		return Limit{}, fmt.Errorf("limit %q has a bad window: %w", s, err)
	}

	return Limit{MaxRequests: maxRequests, Window: window}, nil
}
