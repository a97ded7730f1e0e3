package app

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/store-bridge/internal/auth"
	"github.com/noah-isme/store-bridge/internal/cart"
	"github.com/noah-isme/store-bridge/internal/catalog"
	"github.com/noah-isme/store-bridge/internal/common"
	"github.com/noah-isme/store-bridge/internal/health"
	"github.com/noah-isme/store-bridge/internal/obs"
	"github.com/noah-isme/store-bridge/internal/ratelimit"
	"github.com/noah-isme/store-bridge/internal/security"
	"github.com/noah-isme/store-bridge/internal/tools"
)

// NewRouter mounts every HTTP surface of the bridge.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config
	opts := d.options

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: d.Catalog})
	cartHandler := &cart.Handler{Svc: d.Carts}
	authHandler := &auth.Handler{Service: d.Auth}
	authMiddleware := auth.Middleware{Service: d.Auth}
	toolsHandler := &tools.Handler{Registry: d.Tools, Logger: d.Logger}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	limit := ratelimit.Handler{
		Limiter: d.Limiter,
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate_limit_store_error") },
	}
	healthHandler := health.Handler{
		Checker:         health.Probes{Upstream: d.Upstream, Redis: d.Redis},
		UpstreamTimeout: cfg.HealthUpstreamTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger, Quiet: []string{"/health/live", "/metrics"}}.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if d.MetricsRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.MetricsRegistry, promhttp.HandlerOpts{}))
	}
	if opts.Pprof {
		r.Mount("/debug", protectPprof(middleware.Profiler(), opts.PprofUser, opts.PprofPass))
	}

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Group(func(api chi.Router) {
		api.Use(limit.Middleware)
		api.Use(authMiddleware.Authenticate)

		api.Route("/api/v1", func(v chi.Router) {
			v.Get("/categories", catalogHandler.Categories)
			v.Get("/categories/{category}/products", catalogHandler.CategoryProducts)
			v.Get("/products", catalogHandler.Products)
			v.Get("/products/{id}", catalogHandler.Product)

			v.Post("/auth/login", authHandler.Login)
			v.Get("/users", authHandler.Users)

			v.Route("/carts", func(c chi.Router) {
				c.Get("/{userId}", cartHandler.Get)
				c.Group(func(g chi.Router) {
					g.Use(idem.Middleware)
					g.Post("/", cartHandler.Create)
					g.Post("/{userId}/items", cartHandler.AddItem)
					g.Patch("/{userId}/items/{productId}", cartHandler.UpdateItem)
					g.Delete("/{userId}/items/{productId}", cartHandler.RemoveItem)
					g.Delete("/{userId}", cartHandler.Clear)
				})
			})
		})

		api.Route("/mcp/tools", func(t chi.Router) {
			t.Get("/", toolsHandler.List)
			t.Post("/{toolName}", toolsHandler.Call)
		})
	})

	return r
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
