package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/store-bridge/internal/auth"
	"github.com/noah-isme/store-bridge/internal/cart"
	"github.com/noah-isme/store-bridge/internal/catalog"
	"github.com/noah-isme/store-bridge/internal/config"
	"github.com/noah-isme/store-bridge/internal/obs"
	"github.com/noah-isme/store-bridge/internal/ratelimit"
	"github.com/noah-isme/store-bridge/internal/resilience"
	"github.com/noah-isme/store-bridge/internal/tools"
	"github.com/noah-isme/store-bridge/internal/upstream"
)

// Options tweaks dependency construction. Zero values use production defaults.
type Options struct {
	// Redis overrides the client built from REDIS_URL.
	Redis *redis.Client
	// HTTPClient overrides the instrumented upstream http.Client.
	HTTPClient *http.Client
	// MetricsNamespace prefixes domain and HTTP collectors; empty disables metrics.
	MetricsNamespace string
	MetricsBuckets   []float64
	Registerer       prometheus.Registerer
	Gatherer         prometheus.Gatherer
	Tracing          bool
	Pprof            bool
	PprofUser        string
	PprofPass        string
}

// Dependencies enumerates the shared services wired into the HTTP router.
type Dependencies struct {
	Config          *config.Config
	Logger          zerolog.Logger
	Redis           *redis.Client
	Limiter         *limiter.Limiter
	MetricsRegistry prometheus.Gatherer
	HTTPMetrics     *obs.HTTPMetrics
	Breaker         *resilience.Breaker
	Upstream        *upstream.Client

	Carts   *cart.Service
	Catalog *catalog.Service
	Auth    *auth.Service
	Tools   *tools.Registry

	options   Options
	ownsRedis bool
}

// NewDependencies builds every service from cfg.
func NewDependencies(cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	d := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		options: opts,
	}

	if opts.MetricsNamespace != "" {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		d.MetricsRegistry = opts.Gatherer
		if d.MetricsRegistry == nil {
			d.MetricsRegistry = prometheus.DefaultGatherer
		}
		obs.MustRegisterDomainMetrics(opts.MetricsNamespace, reg)
		resilience.RegisterMetrics(opts.MetricsNamespace, reg)
		d.HTTPMetrics = obs.NewHTTPMetrics(opts.MetricsNamespace, opts.MetricsBuckets, reg)
	}

	d.Redis = opts.Redis
	if d.Redis == nil && cfg.RedisEnabled() {
		rdb, err := NewRedis(cfg.RedisURL, opts.MetricsNamespace != "")
		if err != nil {
			return nil, err
		}
		d.Redis = rdb
		d.ownsRedis = true
	}

	store, err := NewLimiterStore(d.Redis)
	if err != nil {
		return nil, err
	}
	if d.Limiter, err = ratelimit.New(store, cfg.RateLimit); err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = upstream.NewHTTPClient(cfg.UpstreamTimeout)
	}
	d.Breaker = resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("fakestore").
		WithLogger(logger)
	d.Upstream, err = upstream.NewClient(upstream.Config{
		BaseURL: cfg.FakeStoreURL,
		HTTP: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     d.Breaker,
			BaseBackoff: cfg.UpstreamRetryBase,
			MaxAttempts: cfg.UpstreamMaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.UpstreamTimeout,
		},
	})
	if err != nil {
		return nil, err
	}

	if d.Catalog, err = catalog.NewService(catalog.ServiceConfig{
		Provider: d.Upstream,
		Cache:    catalog.NewCache(d.Redis, cfg.CatalogCacheTTL),
		MaxLimit: cfg.CatalogMaxLimit,
		Logger:   logger,
	}); err != nil {
		return nil, fmt.Errorf("app: catalog service: %w", err)
	}
	if d.Carts, err = cart.NewService(cart.ServiceConfig{
		Store:          cart.NewStore(cfg.CartLockTimeout),
		Products:       d.Upstream,
		CatalogTimeout: cfg.CartCatalogTimeout,
		Logger:         logger,
	}); err != nil {
		return nil, fmt.Errorf("app: cart service: %w", err)
	}
	if d.Auth, err = auth.NewService(auth.Config{
		Provider: d.Upstream,
		MaxAge:   cfg.TokenMaxAge,
		Logger:   logger,
	}); err != nil {
		return nil, fmt.Errorf("app: auth service: %w", err)
	}
	d.Tools = tools.NewBridge(tools.Deps{Cart: d.Carts, Catalog: d.Catalog, Accounts: d.Auth})
	return d, nil
}

// NewRedis parses url and returns an otel-instrumented client.
func NewRedis(url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("app: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("app: instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			return nil, fmt.Errorf("app: instrument redis metrics: %w", err)
		}
	}
	return client, nil
}

// NewLimiterStore wires a rate limiter store backed by Redis, falling back to
// process memory when Redis is not configured.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	return ratelimit.NewStore(rdb)
}

// Ping verifies the optional Redis connection.
func (d *Dependencies) Ping(ctx context.Context) error {
	if d.Redis == nil {
		return nil
	}
	return d.Redis.Ping(ctx).Err()
}

// Close releases connections the dependencies opened themselves.
func (d *Dependencies) Close() error {
	if d.ownsRedis && d.Redis != nil {
		return d.Redis.Close()
	}
	return nil
}
