package app_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/store-bridge/internal/app"
	"github.com/noah-isme/store-bridge/internal/config"
)

var testRegistry = prometheus.NewRegistry()

type fakeStore struct {
	down     atomic.Bool
	products atomic.Int32
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.down.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/products/1":
		f.products.Add(1)
		_, _ = w.Write([]byte(`{"id":1,"title":"Fjallraven Backpack","price":109.95,"category":"men's clothing","image":"https://img/1.jpg"}`))
	case "/products/9":
		f.products.Add(1)
		_, _ = w.Write([]byte(`{"id":9,"title":"WD 2TB Drive","price":64,"category":"electronics","image":"https://img/9.jpg"}`))
	case "/products":
		_, _ = w.Write([]byte(`[{"id":1,"title":"Fjallraven Backpack","price":109.95,"category":"men's clothing"}]`))
	case "/products/categories":
		_, _ = w.Write([]byte(`["electronics","jewelery"]`))
	case "/users":
		_, _ = w.Write([]byte(`[{"id":1,"username":"johnd","email":"john@gmail.com","password":"m38rmF$","name":{"firstname":"john","lastname":"doe"}}]`))
	default:
		// unknown product ids answer 200 with an empty body
	}
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		AppEnv:                "test",
		Port:                  "0",
		FakeStoreURL:          upstreamURL,
		UpstreamTimeout:       time.Second,
		UpstreamMaxAttempts:   1,
		UpstreamRetryBase:     time.Millisecond,
		BreakerMinRequests:    100,
		BreakerFailureRatio:   0.9,
		BreakerOpenFor:        time.Second,
		CartCatalogTimeout:    time.Second,
		CartLockTimeout:       time.Second,
		CatalogCacheTTL:       time.Minute,
		CatalogMaxLimit:       100,
		IdempotencyTTL:        time.Hour,
		CORSAllowedOrigins:    []string{"http://localhost:3000"},
		RateLimit:             "1000-M",
		BodyLimitBytes:        1 << 20,
		SecurityHeaders:       true,
		TokenMaxAge:           24 * time.Hour,
		HealthUpstreamTimeout: time.Second,
	}
}

type env struct {
	router   http.Handler
	upstream *fakeStore
	redis    *miniredis.Miniredis
}

func newEnv(t *testing.T, mutate func(*config.Config)) env {
	t.Helper()
	fake := &fakeStore{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig(srv.URL)
	if mutate != nil {
		mutate(cfg)
	}
	deps, err := app.NewDependencies(cfg, zerolog.Nop(), app.Options{
		Redis:            rdb,
		HTTPClient:       srv.Client(),
		MetricsNamespace: "storebridge_test",
		Registerer:       testRegistry,
		Gatherer:         testRegistry,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	return env{router: app.NewRouter(deps), upstream: fake, redis: mr}
}

func (e env) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type cartEnvelope struct {
	Data struct {
		TotalItems      int    `json:"total_items"`
		SubtotalDisplay string `json:"subtotal_display"`
		TaxDisplay      string `json:"tax_display"`
		TotalDisplay    string `json:"total_display"`
		Items           []struct {
			ProductID int `json:"product_id"`
			Quantity  int `json:"quantity"`
		} `json:"items"`
	} `json:"data"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartEnvelope {
	t.Helper()
	var out cartEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCartRoutesEndToEnd(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/v1/carts/u1/items", `{"product_id":1,"quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, "/api/v1/carts/u1/items", `{"product_id":9}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decodeCart(t, e.do(t, http.MethodGet, "/api/v1/carts/u1", "", nil))
	require.Equal(t, 3, view.Data.TotalItems)
	require.Equal(t, "283.90", view.Data.SubtotalDisplay)
	require.Equal(t, "22.71", view.Data.TaxDisplay)
	require.Equal(t, "306.61", view.Data.TotalDisplay)

	rec = e.do(t, http.MethodPost, "/api/v1/carts/u1/items", `{"product_id":404}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "PRODUCT_NOT_FOUND")

	rec = e.do(t, http.MethodDelete, "/api/v1/carts/u1/items/1?quantity=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeCart(t, rec)
	require.Len(t, view.Data.Items, 1)
	require.Equal(t, 9, view.Data.Items[0].ProductID)

	rec = e.do(t, http.MethodDelete, "/api/v1/carts/u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, decodeCart(t, rec).Data.TotalItems)
}

func TestIdempotentAddIsAppliedOnce(t *testing.T) {
	e := newEnv(t, nil)
	headers := map[string]string{"Idempotency-Key": "add-once"}

	first := e.do(t, http.MethodPost, "/api/v1/carts/u1/items", `{"product_id":1}`, headers)
	require.Equal(t, http.StatusOK, first.Code)
	second := e.do(t, http.MethodPost, "/api/v1/carts/u1/items", `{"product_id":1}`, headers)
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	view := decodeCart(t, e.do(t, http.MethodGet, "/api/v1/carts/u1", "", nil))
	require.Equal(t, 1, view.Data.TotalItems)
	require.Equal(t, int32(1), e.upstream.products.Load())
}

func TestUpstreamOutageMapsTo502(t *testing.T) {
	e := newEnv(t, nil)
	e.upstream.down.Store(true)

	rec := e.do(t, http.MethodPost, "/api/v1/carts/u1/items", `{"product_id":1}`, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "UPSTREAM_UNAVAILABLE")

	rec = e.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitApplies(t *testing.T) {
	e := newEnv(t, func(cfg *config.Config) { cfg.RateLimit = "2-M" })
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, e.do(t, http.MethodGet, "/api/v1/categories", "", nil).Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// health probes are not limited
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestToolBridgeAndObservabilityRoutes(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/mcp/tools", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "update_cart_quantity")

	rec = e.do(t, http.MethodPost, "/mcp/tools/add_to_cart", `{"user_id":"tool-user","product_id":9,"quantity":3}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"success"`)

	view := decodeCart(t, e.do(t, http.MethodGet, "/api/v1/carts/tool-user", "", nil))
	require.Equal(t, 3, view.Data.TotalItems)
	require.Equal(t, "192.00", view.Data.SubtotalDisplay)

	rec = e.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "storebridge_test_cart_operations_total")
	require.Contains(t, rec.Body.String(), "storebridge_test_http_requests_total")
}

func TestCatalogListingIsCachedInRedis(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, e.redis.Exists("catalog:categories"))

	e.upstream.down.Store(true)
	rec = e.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "jewelery")
}
