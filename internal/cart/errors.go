package cart

import (
	"errors"

	"github.com/noah-isme/store-bridge/internal/common"
)

var (
	// ErrInvalidQuantity is returned for non-positive add/remove quantities,
	// negative target quantities and merges that would overflow a line.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrProductNotFound indicates the catalog has no product with the requested id.
	ErrProductNotFound = errors.New("product not found")
	// ErrItemNotInCart indicates the product has no line in the user's cart.
	ErrItemNotInCart = errors.New("item not in cart")
	// ErrUpstreamUnavailable indicates the catalog could not be reached in time.
	ErrUpstreamUnavailable = errors.New("catalog provider unavailable")
	// ErrCartBusy indicates the user's cart lock could not be acquired in time.
	ErrCartBusy = errors.New("cart is busy, retry shortly")

	errPriceNeeded = errors.New("cart: line grows without a fetched price")
)

// ValidationError reports malformed input rejected at the request boundary.
type ValidationError = common.ValidationError
