package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	FakeStoreURL          string
	UpstreamTimeout       time.Duration
	UpstreamMaxAttempts   int
	UpstreamRetryBase     time.Duration
	BreakerMinRequests    int
	BreakerFailureRatio   float64
	BreakerOpenFor        time.Duration
	CartCatalogTimeout    time.Duration
	CartLockTimeout       time.Duration
	RedisURL              string
	CatalogCacheTTL       time.Duration
	CatalogMaxLimit       int
	IdempotencyTTL        time.Duration
	CORSAllowedOrigins    []string
	RateLimit             string
	BodyLimitBytes        int64
	SecurityHeaders       bool
	TokenMaxAge           time.Duration
	ShutdownGracePeriod   time.Duration
	HealthUpstreamTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	origins := splitAndTrim(k.String("CORS_ALLOWED_ORIGINS"))
	if len(origins) == 0 {
		origins = splitAndTrim(valueOrDefault(k.String("CORS_ORIGIN"), "http://localhost:3000"))
	}

	cfg := &Config{
		AppEnv:                valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                  valueOrDefault(k.String("PORT"), "8080"),
		FakeStoreURL:          strings.TrimRight(valueOrDefault(k.String("FAKESTORE_API_URL"), "https://fakestoreapi.com"), "/"),
		UpstreamTimeout:       parseDuration(k.String("UPSTREAM_TIMEOUT"), "5s"),
		UpstreamMaxAttempts:   parseInt(k.String("UPSTREAM_MAX_ATTEMPTS"), 2),
		UpstreamRetryBase:     parseDuration(k.String("UPSTREAM_RETRY_BASE"), "100ms"),
		BreakerMinRequests:    parseInt(k.String("UPSTREAM_BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio:   parseFloat(k.String("UPSTREAM_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:        parseDuration(k.String("UPSTREAM_BREAKER_OPEN_FOR"), "30s"),
		CartCatalogTimeout:    parseDuration(k.String("CART_CATALOG_TIMEOUT"), "5s"),
		CartLockTimeout:       parseDuration(k.String("CART_LOCK_TIMEOUT"), "2s"),
		RedisURL:              strings.TrimSpace(k.String("REDIS_URL")),
		CatalogCacheTTL:       parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		CatalogMaxLimit:       parseInt(k.String("CATALOG_MAX_LIMIT"), 100),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CORSAllowedOrigins:    origins,
		RateLimit:             valueOrDefault(k.String("RATE_LIMIT"), "100-M"),
		BodyLimitBytes:        int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeaders:       parseBool(valueOrDefault(k.String("SECURITY_HEADERS"), "true")),
		TokenMaxAge:           parseDuration(k.String("AUTH_TOKEN_MAX_AGE"), "168h"),
		ShutdownGracePeriod:   parseDuration(k.String("SHUTDOWN_GRACE_PERIOD"), "10s"),
		HealthUpstreamTimeout: parseDuration(k.String("HEALTH_READY_UPSTREAM_TIMEOUT"), "2s"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.FakeStoreURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("FAKESTORE_API_URL must be an absolute URL")
	}
	if c.UpstreamMaxAttempts < 1 {
		return errors.New("UPSTREAM_MAX_ATTEMPTS must be at least 1")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return errors.New("UPSTREAM_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// RedisEnabled reports whether a Redis URL was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
