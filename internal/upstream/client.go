package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/store-bridge/internal/obs"
	"github.com/noah-isme/store-bridge/internal/resilience"
)

// DefaultBaseURL is the public Fake Store API.
const DefaultBaseURL = "https://fakestoreapi.com"

var (
	// ErrNotFound indicates the upstream has no such resource.
	ErrNotFound = errors.New("upstream: not found")
	// ErrUnavailable indicates the upstream could not be reached or failed.
	ErrUnavailable = errors.New("upstream: unavailable")
	// ErrUnauthorized indicates rejected credentials.
	ErrUnauthorized = errors.New("upstream: invalid credentials")
)

// Doer executes HTTP requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the Fake Store REST API.
type Client struct {
	baseURL string
	http    Doer
}

// Config groups Client dependencies.
type Config struct {
	BaseURL string
	HTTP    Doer
}

// NewClient constructs a Client. A missing BaseURL falls back to DefaultBaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.HTTP == nil {
		return nil, errors.New("upstream: http doer is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	return &Client{baseURL: base, http: cfg.HTTP}, nil
}

// NewHTTPClient returns an otel-instrumented http.Client for upstream calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// GetProduct fetches a single product by identifier. The Fake Store API
// answers unknown ids with 200 and an empty body, which maps to ErrNotFound.
func (c *Client) GetProduct(ctx context.Context, id int) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	var product *Product
	if err := c.getJSON(ctx, "upstream.get_product", "/products/"+strconv.Itoa(id), nil, &product); err != nil {
		return Product{}, err
	}
	if product == nil || product.ID == 0 {
		return Product{}, ErrNotFound
	}
	return *product, nil
}

// ListProducts lists products optionally filtered by category and limited.
func (c *Client) ListProducts(ctx context.Context, category string, limit int) ([]Product, error) {
	path := "/products"
	if category = strings.TrimSpace(category); category != "" {
		path += "/category/" + url.PathEscape(category)
	}
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var products []Product
	if err := c.getJSON(ctx, "upstream.list_products", path, query, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// ListCategories returns the category names known upstream.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.getJSON(ctx, "upstream.list_categories", "/products/categories", nil, &categories); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// ListUsers returns every upstream user.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.getJSON(ctx, "upstream.list_users", "/users", nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Login exchanges credentials for an upstream token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := otel.Tracer("upstream").Start(ctx, "upstream.login")
	defer span.End()

	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("login: %w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return "", ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("login: %w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("login: decode: %w: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(body.Token) == "" {
		return "", ErrUnauthorized
	}
	return body.Token, nil
}

// Ping checks upstream reachability using the cheapest listing endpoint.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := c.ListCategories(ctx)
	return err
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, dst any) (err error) {
	ctx, span := otel.Tracer("upstream").Start(ctx, op)
	defer span.End()
	start := time.Now()
	defer func() { obs.ObserveUpstream(op, resultLabel(err), time.Since(start)) }()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	span.SetAttributes(attribute.String("http.url", target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("%s: %w: status %d", op, ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read: %w: %v", op, ErrUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%s: decode: %w: %v", op, ErrUnavailable, err)
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
