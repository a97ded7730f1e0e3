package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/store-bridge/internal/config"
)

func blankEnv(overrides map[string]string) map[string]string {
	env := map[string]string{
		"APP_ENV":                        "",
		"PORT":                           "",
		"FAKESTORE_API_URL":              "",
		"UPSTREAM_TIMEOUT":               "",
		"UPSTREAM_MAX_ATTEMPTS":          "",
		"UPSTREAM_BREAKER_FAILURE_RATIO": "",
		"CART_CATALOG_TIMEOUT":           "",
		"CART_LOCK_TIMEOUT":              "",
		"REDIS_URL":                      "",
		"CORS_ORIGIN":                    "",
		"CORS_ALLOWED_ORIGINS":           "",
		"RATE_LIMIT":                     "",
		"BODY_LIMIT_BYTES":               "",
	}
	for k, v := range overrides {
		env[k] = v
	}
	return env
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(blankEnv(nil))
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "https://fakestoreapi.com", cfg.FakeStoreURL)
	require.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, 2, cfg.UpstreamMaxAttempts)
	require.Equal(t, 5*time.Second, cfg.CartCatalogTimeout)
	require.Equal(t, 2*time.Second, cfg.CartLockTimeout)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "100-M", cfg.RateLimit)
	require.Equal(t, int64(1<<20), cfg.BodyLimitBytes)
	require.False(t, cfg.RedisEnabled())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(blankEnv(map[string]string{
		"PORT":                 ":9090",
		"FAKESTORE_API_URL":    "http://localhost:4000/",
		"CART_CATALOG_TIMEOUT": "750ms",
		"REDIS_URL":            "redis://localhost:6379/0",
		"CORS_ORIGIN":          "http://ignored.example",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
		"RATE_LIMIT":           "10-S",
		"UPSTREAM_TIMEOUT":     "not-a-duration",
	}))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "http://localhost:4000", cfg.FakeStoreURL)
	require.Equal(t, 750*time.Millisecond, cfg.CartCatalogTimeout)
	require.True(t, cfg.RedisEnabled())
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "10-S", cfg.RateLimit)
	require.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
}

func TestLoadCORSOriginFallback(t *testing.T) {
	cfg, err := config.LoadForTests(blankEnv(map[string]string{"CORS_ORIGIN": "http://shop.example"}))
	require.NoError(t, err)
	require.Equal(t, []string{"http://shop.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := config.LoadForTests(blankEnv(map[string]string{"FAKESTORE_API_URL": "not a url"}))
	require.Error(t, err)

	_, err = config.LoadForTests(blankEnv(map[string]string{"UPSTREAM_MAX_ATTEMPTS": "0"}))
	require.Error(t, err)

	_, err = config.LoadForTests(blankEnv(map[string]string{"UPSTREAM_BREAKER_FAILURE_RATIO": "1.5"}))
	require.Error(t, err)
}
