package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/store-bridge/internal/obs"
	"github.com/noah-isme/store-bridge/internal/upstream"
)

// ProductGetter resolves a product's current title, price and image.
type ProductGetter interface {
	GetProduct(ctx context.Context, id int) (upstream.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	store          *Store
	products       ProductGetter
	catalogTimeout time.Duration
	logger         zerolog.Logger
	tracer         trace.Tracer
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store          *Store
	Products       ProductGetter
	CatalogTimeout time.Duration
	Logger         zerolog.Logger
}

// NewService constructs a Service. A nil Store gets a fresh in-memory store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Products == nil {
		return nil, errors.New("cart: product getter is required")
	}
	store := cfg.Store
	if store == nil {
		store = NewStore(0)
	}
	timeout := cfg.CatalogTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		store:          store,
		products:       cfg.Products,
		catalogTimeout: timeout,
		logger:         cfg.Logger,
		tracer:         otel.Tracer("cart"),
	}, nil
}

// Add resolves the product's current price and merges quantity units into
// the user's cart. The catalog lookup happens before the user's lock is taken.
func (s *Service) Add(ctx context.Context, userID string, productID, quantity int) (cart Cart, err error) {
	ctx, span := s.startSpan(ctx, "cart.add", userID, productID)
	defer func() { s.finish(span, "add", err) }()

	if err := checkUserID(userID); err != nil {
		return Cart{}, err
	}
	if quantity <= 0 {
		return Cart{}, ErrInvalidQuantity
	}
	product, err := s.fetch(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	cart, err = s.store.Update(ctx, userID, func(c *Cart) error {
		return applyAdd(c, product, quantity)
	})
	if err != nil {
		return Cart{}, err
	}
	s.logger.Info().
		Str("user_id", userID).
		Int("product_id", productID).
		Int("quantity", quantity).
		Str("unit_price", product.Price.String()).
		Msg("cart_item_added")
	return cart, nil
}

// Remove drops or decrements the product's line. A nil quantity removes the
// whole line. The stored unit price is kept.
func (s *Service) Remove(ctx context.Context, userID string, productID int, quantity *int) (cart Cart, err error) {
	ctx, span := s.startSpan(ctx, "cart.remove", userID, productID)
	defer func() { s.finish(span, "remove", err) }()

	if err := checkUserID(userID); err != nil {
		return Cart{}, err
	}
	if quantity != nil && *quantity <= 0 {
		return Cart{}, ErrInvalidQuantity
	}
	cart, err = s.store.Update(ctx, userID, func(c *Cart) error {
		return applyRemove(c, productID, quantity)
	})
	if err != nil {
		return Cart{}, err
	}
	evt := s.logger.Info().Str("user_id", userID).Int("product_id", productID)
	if quantity != nil {
		evt = evt.Int("quantity", *quantity)
	}
	evt.Msg("cart_item_removed")
	return cart, nil
}

// SetQuantity moves the product's line to exactly n units. Zero removes the
// line; growth re-fetches the price like Add and shrinkage keeps it like Remove.
func (s *Service) SetQuantity(ctx context.Context, userID string, productID, n int) (cart Cart, err error) {
	if n < 0 {
		return Cart{}, ErrInvalidQuantity
	}
	if n == 0 {
		return s.Remove(ctx, userID, productID, nil)
	}

	ctx, span := s.startSpan(ctx, "cart.set_quantity", userID, productID)
	defer func() { s.finish(span, "set_quantity", err) }()

	if err := checkUserID(userID); err != nil {
		return Cart{}, err
	}
	var product *Product
	for {
		if product == nil && n > s.store.Get(userID).Quantity(productID) {
			p, err := s.fetch(ctx, productID)
			if err != nil {
				return Cart{}, err
			}
			product = &p
		}
		cart, err = s.store.Update(ctx, userID, func(c *Cart) error {
			delta := n - c.Quantity(productID)
			switch {
			case delta > 0 && product == nil:
				// The line shrank after the unlocked check; growth needs a price.
				return errPriceNeeded
			case delta > 0:
				return applyAdd(c, *product, delta)
			case delta < 0:
				remove := -delta
				return applyRemove(c, productID, &remove)
			default:
				return nil
			}
		})
		if !errors.Is(err, errPriceNeeded) {
			break
		}
	}
	if err != nil {
		return Cart{}, err
	}
	s.logger.Info().Str("user_id", userID).Int("product_id", productID).Int("quantity", n).Msg("cart_quantity_set")
	return cart, nil
}

// View returns the user's cart, materializing an empty one if needed.
func (s *Service) View(ctx context.Context, userID string) (Cart, error) {
	if err := checkUserID(userID); err != nil {
		return Cart{}, err
	}
	_, span := s.startSpan(ctx, "cart.view", userID, 0)
	defer span.End()
	cart := s.store.Get(userID)
	obs.ObserveCartOperation("view", "ok")
	obs.SetCartsActive(s.store.Len())
	return cart, nil
}

// Clear replaces the user's cart with an empty one. Clearing is idempotent.
func (s *Service) Clear(ctx context.Context, userID string) (cart Cart, err error) {
	ctx, span := s.startSpan(ctx, "cart.clear", userID, 0)
	defer func() { s.finish(span, "clear", err) }()

	if err := checkUserID(userID); err != nil {
		return Cart{}, err
	}
	cart, err = s.store.Reset(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	s.logger.Info().Str("user_id", userID).Msg("cart_cleared")
	return cart, nil
}

// NewGuest allocates a random user id with an empty cart.
func (s *Service) NewGuest(ctx context.Context) (string, Cart, error) {
	id := uuid.NewString()
	cart, err := s.View(ctx, id)
	if err != nil {
		return "", Cart{}, err
	}
	return id, cart, nil
}

func (s *Service) fetch(ctx context.Context, productID int) (Product, error) {
	if productID <= 0 {
		return Product{}, ErrProductNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.catalogTimeout)
	defer cancel()
	p, err := s.products.GetProduct(ctx, productID)
	switch {
	case err == nil:
		return Product{ID: p.ID, Title: p.Title, Price: priceFromFloat(p.Price), Image: p.Image}, nil
	case errors.Is(err, upstream.ErrNotFound):
		return Product{}, fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	default:
		s.logger.Warn().Err(err).Int("product_id", productID).Msg("cart_catalog_lookup_failed")
		return Product{}, fmt.Errorf("product %d: %w: %v", productID, ErrUpstreamUnavailable, err)
	}
}

func (s *Service) startSpan(ctx context.Context, name, userID string, productID int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("cart.user_id", userID)}
	if productID != 0 {
		attrs = append(attrs, attribute.Int("cart.product_id", productID))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) finish(span trace.Span, op string, err error) {
	result := "ok"
	if err != nil {
		result = resultLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	obs.ObserveCartOperation(op, result)
	obs.SetCartsActive(s.store.Len())
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrItemNotInCart):
		return "item_not_in_cart"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrCartBusy):
		return "busy"
	default:
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return "invalid"
		}
		return "error"
	}
}

func checkUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &ValidationError{Field: "user_id", Message: "user_id is required"}
	}
	return nil
}
