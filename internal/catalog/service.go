package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/store-bridge/internal/common"
	"github.com/noah-isme/store-bridge/internal/upstream"
)

// Provider is the upstream catalog source.
type Provider interface {
	GetProduct(ctx context.Context, id int) (upstream.Product, error)
	ListProducts(ctx context.Context, category string, limit int) ([]upstream.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Service proxies catalog reads and caches listing responses.
type Service struct {
	provider Provider
	cache    *Cache
	maxLimit int
	logger   zerolog.Logger
	loads    singleflight.Group
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Provider Provider
	Cache    *Cache
	MaxLimit int
	Logger   zerolog.Logger
}

// ListParams captures filters for product listing.
type ListParams struct {
	Category string
	Limit    int
}

// Product is the public product payload.
type Product struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	Image        string  `json:"image"`
	Rating       Rating  `json:"rating"`
}

// Rating is the aggregate review score for a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Provider == nil {
		return nil, errors.New("catalog: provider is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &Service{
		provider: cfg.Provider,
		cache:    cfg.Cache,
		maxLimit: maxLimit,
		logger:   cfg.Logger,
	}, nil
}

// ParseListParams normalises raw query values into typed filters. A zero
// limit means no limit.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Category: strings.TrimSpace(values.Get("category"))}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, common.BadRequest("limit", "limit must be a positive integer", err)
		}
		if limit > s.maxLimit {
			limit = s.maxLimit
		}
		params.Limit = limit
	}
	return params, nil
}

// ListProducts returns products, optionally filtered by category and limited.
func (s *Service) ListProducts(ctx context.Context, params ListParams) ([]Product, error) {
	return remember(ctx, s, listCacheKey(params), func(ctx context.Context) ([]Product, error) {
		rows, err := s.provider.ListProducts(ctx, params.Category, params.Limit)
		if err != nil {
			return nil, mapProviderError(err, "list products")
		}
		items := make([]Product, 0, len(rows))
		for _, row := range rows {
			items = append(items, fromUpstream(row))
		}
		return items, nil
	})
}

// GetProduct returns a single product. Product lookups are not cached so
// prices stay current.
func (s *Service) GetProduct(ctx context.Context, id int) (Product, error) {
	if id <= 0 {
		return Product{}, common.BadRequest("id", "id must be a positive integer", nil)
	}
	row, err := s.provider.GetProduct(ctx, id)
	if err != nil {
		return Product{}, mapProviderError(err, "get product")
	}
	return fromUpstream(row), nil
}

// ListCategories returns all category names.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return remember(ctx, s, "catalog:categories", func(ctx context.Context) ([]string, error) {
		categories, err := s.provider.ListCategories(ctx)
		if err != nil {
			return nil, mapProviderError(err, "list categories")
		}
		return categories, nil
	})
}

func fromUpstream(p upstream.Product) Product {
	return Product{
		ID:           p.ID,
		Title:        p.Title,
		Price:        p.Price,
		PriceDisplay: strconv.FormatFloat(p.Price, 'f', 2, 64),
		Description:  p.Description,
		Category:     p.Category,
		Image:        p.Image,
		Rating:       Rating{Rate: p.Rating.Rate, Count: p.Rating.Count},
	}
}

func listCacheKey(params ListParams) string {
	category := strings.ToLower(params.Category)
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("catalog:products:list:%s:%d", category, params.Limit)
}

func mapProviderError(err error, op string) error {
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		return common.NotFound("NOT_FOUND", "product not found", err)
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return common.UpstreamUnavailable("catalog provider unavailable", err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
