package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/store-bridge/internal/cart"
	"github.com/noah-isme/store-bridge/internal/upstream"
)

type cartResponse struct {
	Data cart.View `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newRouter(t *testing.T, catalog *fakeCatalog) http.Handler {
	t.Helper()
	svc, err := cart.NewService(cart.ServiceConfig{
		Store:          cart.NewStore(time.Second),
		Products:       catalog,
		CatalogTimeout: time.Second,
	})
	require.NoError(t, err)
	h := &cart.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Route("/api/v1/carts", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{userId}", h.Get)
		r.Delete("/{userId}", h.Clear)
		r.Post("/{userId}/items", h.AddItem)
		r.Patch("/{userId}/items/{productId}", h.UpdateItem)
		r.Delete("/{userId}/items/{productId}", h.RemoveItem)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req = req.WithContext(context.Background())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cart.View {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCartHandlersFlow(t *testing.T) {
	router := newRouter(t, newFakeCatalog(
		upstream.Product{ID: 1, Title: "Backpack", Price: 109.95, Image: "img1"},
		upstream.Product{ID: 2, Title: "Shirt", Price: 22.3},
	))

	rec := do(t, router, http.MethodPost, "/api/v1/carts/alice/items", `{"product_id":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeCart(t, rec)
	require.Len(t, view.Items, 1)
	require.Equal(t, 2, view.TotalItems)
	require.Equal(t, "219.90", view.SubtotalDisplay)
	require.Equal(t, "17.59", view.TaxDisplay)
	require.Equal(t, "237.49", view.TotalDisplay)
	require.InDelta(t, 17.592, view.Tax, 1e-9)

	rec = do(t, router, http.MethodPost, "/api/v1/carts/alice/items", `{"product_id":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeCart(t, rec)
	require.Equal(t, 3, view.TotalItems)
	require.Equal(t, 2, view.Items[1].ProductID)
	require.Equal(t, 1, view.Items[1].Quantity)

	rec = do(t, router, http.MethodPatch, "/api/v1/carts/alice/items/2", `{"quantity":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeCart(t, rec)
	require.Equal(t, 4, view.Items[1].Quantity)
	require.Equal(t, "89.20", view.Items[1].TotalDisplay)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/alice/items/1?quantity=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeCart(t, rec)
	require.Equal(t, 1, view.Items[0].Quantity)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/alice/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeCart(t, rec)
	require.Len(t, view.Items, 1)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 4, decodeCart(t, rec).TotalItems)

	rec = do(t, router, http.MethodDelete, "/api/v1/carts/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeCart(t, rec)
	require.Empty(t, view.Items)
	require.Equal(t, "0.00", view.TotalDisplay)
}

func TestCartHandlerErrors(t *testing.T) {
	router := newRouter(t, newFakeCatalog(upstream.Product{ID: 1, Title: "A", Price: 1}))

	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"unknown product", http.MethodPost, "/api/v1/carts/bob/items", `{"product_id":42}`, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"zero quantity", http.MethodPost, "/api/v1/carts/bob/items", `{"product_id":1,"quantity":0}`, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"quantity above cap", http.MethodPost, "/api/v1/carts/bob/items", `{"product_id":1,"quantity":10001}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"set quantity above cap", http.MethodPatch, "/api/v1/carts/bob/items/1", `{"quantity":9223372036854775807}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing product id", http.MethodPost, "/api/v1/carts/bob/items", `{"quantity":1}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"malformed body", http.MethodPost, "/api/v1/carts/bob/items", `{`, http.StatusBadRequest, "BAD_REQUEST"},
		{"remove absent", http.MethodDelete, "/api/v1/carts/bob/items/1", "", http.StatusNotFound, "ITEM_NOT_IN_CART"},
		{"remove bad quantity", http.MethodDelete, "/api/v1/carts/bob/items/1?quantity=x", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"bad product path", http.MethodDelete, "/api/v1/carts/bob/items/abc", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"negative set quantity", http.MethodPatch, "/api/v1/carts/bob/items/1", `{"quantity":-1}`, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"missing set quantity", http.MethodPatch, "/api/v1/carts/bob/items/1", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.target, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Equal(t, tc.code, decodeError(t, rec).Error.Code)
		})
	}
}

func TestCartHandlerUpstreamUnavailable(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.err = upstream.ErrUnavailable
	router := newRouter(t, catalog)

	rec := do(t, router, http.MethodPost, "/api/v1/carts/bob/items", `{"product_id":1}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "UPSTREAM_UNAVAILABLE", decodeError(t, rec).Error.Code)
}

func TestCartHandlerCreateGuest(t *testing.T) {
	router := newRouter(t, newFakeCatalog())
	rec := do(t, router, http.MethodPost, "/api/v1/carts", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data struct {
			UserID string    `json:"user_id"`
			Cart   cart.View `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.UserID)
	require.Empty(t, resp.Data.Cart.Items)

	rec = do(t, router, http.MethodGet, "/api/v1/carts/"+resp.Data.UserID, "")
	require.Equal(t, http.StatusOK, rec.Code)
}
