package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/store-bridge/internal/auth"
	"github.com/noah-isme/store-bridge/internal/cart"
	"github.com/noah-isme/store-bridge/internal/catalog"
	"github.com/noah-isme/store-bridge/internal/common"
)

// CartService is the cart surface used by the cart tools.
type CartService interface {
	Add(ctx context.Context, userID string, productID, quantity int) (cart.Cart, error)
	Remove(ctx context.Context, userID string, productID int, quantity *int) (cart.Cart, error)
	SetQuantity(ctx context.Context, userID string, productID, n int) (cart.Cart, error)
	View(ctx context.Context, userID string) (cart.Cart, error)
	Clear(ctx context.Context, userID string) (cart.Cart, error)
}

// Catalog is the catalog surface used by the product tools.
type Catalog interface {
	ListProducts(ctx context.Context, params catalog.ListParams) ([]catalog.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Accounts is the auth surface used by the login and user tools.
type Accounts interface {
	Login(ctx context.Context, username, password string) (auth.LoginResult, error)
	ListUsers(ctx context.Context) ([]auth.User, error)
}

// Deps groups the services behind the bridge tools.
type Deps struct {
	Cart     CartService
	Catalog  Catalog
	Accounts Accounts
}

type loginParams struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type productsParams struct {
	Category string `json:"category"`
	Limit    int    `json:"limit" validate:"gte=0"`
}

type userParams struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

type addParams struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	ProductID int    `json:"product_id" validate:"required,gt=0"`
	Quantity  *int   `json:"quantity" validate:"omitempty,lte=10000"`
}

type removeParams struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	ProductID int    `json:"product_id" validate:"required,gt=0"`
	Quantity  *int   `json:"quantity"`
}

type setQuantityParams struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	ProductID int    `json:"product_id" validate:"required,gt=0"`
	Quantity  *int   `json:"quantity" validate:"required,lte=10000"`
}

var userIDProp = Property{Type: "string", Description: "User ID (defaults to the bearer token subject)"}
var productIDProp = Property{Type: "number", Description: "Product ID"}

// NewBridge registers every store tool against deps.
func NewBridge(deps Deps) *Registry {
	r := NewRegistry()

	r.Register(Tool{
		Name:        "login_user",
		Description: "Authenticate user with username and password",
		Parameters: Schema{
			Properties: map[string]Property{
				"username": {Type: "string", Description: "Username"},
				"password": {Type: "string", Description: "Password"},
			},
			Required: []string{"username", "password"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (Result, error) {
			var p loginParams
			if err := decode(ctx, raw, &p); err != nil {
				return nil, err
			}
			res, err := deps.Accounts.Login(ctx, p.Username, p.Password)
			if err != nil {
				return nil, err
			}
			return success("Login successful", Result{"user": res.User, "token": res.Token}), nil
		},
	})

	r.Register(Tool{
		Name:        "get_products",
		Description: "Get products from the store with optional category and limit filters",
		Parameters: Schema{
			Properties: map[string]Property{
				"category": {Type: "string", Description: "Product category filter"},
				"limit":    {Type: "number", Description: "Maximum number of products to return"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (Result, error) {
			var p productsParams
			if err := decode(ctx, raw, &p); err != nil {
				return nil, err
			}
			products, err := deps.Catalog.ListProducts(ctx, catalog.ListParams{Category: p.Category, Limit: p.Limit})
			if err != nil {
				return nil, err
			}
			return success("Products retrieved successfully", Result{"products": products, "count": len(products)}), nil
		},
	})

	r.Register(Tool{
		Name:        "get_categories",
		Description: "Get all available product categories",
		Handler: func(ctx context.Context, _ json.RawMessage) (Result, error) {
			categories, err := deps.Catalog.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			return success("Categories retrieved successfully", Result{"categories": categories}), nil
		},
	})

	r.Register(Tool{
		Name:        "add_to_cart",
		Description: "Add a product to user cart",
		Parameters: Schema{
			Properties: map[string]Property{
				"user_id":    userIDProp,
				"product_id": productIDProp,
				"quantity":   {Type: "number", Description: "Quantity to add", Default: 1},
			},
			Required: []string{"user_id", "product_id"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (Result, error) {
			var p addParams
			if err := decode(ctx, raw, &p); err != nil {
				return nil, err
			}
			quantity := 1
			if p.Quantity != nil {
				quantity = *p.Quantity
			}
			c, err := deps.Cart.Add(ctx, p.UserID, p.ProductID, quantity)
			if err != nil {
				return nil, err
			}
			return success("Product added to cart successfully", Result{"data": Result{"cart": c}}), nil
		},
	})

	r.Register(Tool{
		Name:        "remove_from_cart",
		Description: "Remove a product from user cart",
		Parameters: Schema{
			Properties: map[string]Property{
				"user_id":    userIDProp,
				"product_id": productIDProp,
				"quantity":   {Type: "number", Description: "Quantity to remove (optional - removes all if not specified)"},
			},
			Required: []string{"user_id", "product_id"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (Result, error) {
			var p removeParams
			if err := decode(ctx, raw, &p); err != nil {
				return nil, err
			}
			c, err := deps.Cart.Remove(ctx, p.UserID, p.ProductID, p.Quantity)
			if err != nil {
				return nil, err
			}
			return success("Product removed from cart successfully", Result{"data": Result{"cart": c}}), nil
		},
	})

	r.Register(Tool{
		Name:        "update_cart_quantity",
		Description: "Set the quantity of a product in user cart (0 removes it)",
		Parameters: Schema{
			Properties: map[string]Property{
				"user_id":    userIDProp,
				"product_id": productIDProp,
				"quantity":   {Type: "number", Description: "Target quantity"},
			},
			Required: []string{"user_id", "product_id", "quantity"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (Result, error) {
			var p setQuantityParams
			if err := decode(ctx, raw, &p); err != nil {
				return nil, err
			}
			c, err := deps.Cart.SetQuantity(ctx, p.UserID, p.ProductID, *p.Quantity)
			if err != nil {
				return nil, err
			}
			return success("Cart quantity updated successfully", Result{"data": Result{"cart": c}}), nil
		},
	})

	r.Register(Tool{
		Name:        "display_cart",
		Description: "Display user cart with itemized breakdown",
		Parameters: Schema{
			Properties: map[string]Property{"user_id": userIDProp},
			Required:   []string{"user_id"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (Result, error) {
			var p userParams
			if err := decode(ctx, raw, &p); err != nil {
				return nil, err
			}
			c, err := deps.Cart.View(ctx, p.UserID)
			if err != nil {
				return nil, err
			}
			return success("Cart retrieved successfully", Result{"cart": c}), nil
		},
	})

	r.Register(Tool{
		Name:        "clear_cart",
		Description: "Clear all items from user cart",
		Parameters: Schema{
			Properties: map[string]Property{"user_id": userIDProp},
			Required:   []string{"user_id"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (Result, error) {
			var p userParams
			if err := decode(ctx, raw, &p); err != nil {
				return nil, err
			}
			if _, err := deps.Cart.Clear(ctx, p.UserID); err != nil {
				return nil, err
			}
			return success("Cart cleared successfully", nil), nil
		},
	})

	r.Register(Tool{
		Name:        "get_users",
		Description: "Get all users",
		Handler: func(ctx context.Context, _ json.RawMessage) (Result, error) {
			users, err := deps.Accounts.ListUsers(ctx)
			if err != nil {
				return nil, err
			}
			return success("Users retrieved successfully", Result{"data": Result{"users": users}}), nil
		},
	})

	return r
}

func success(message string, fields Result) Result {
	out := Result{"status": "success", "message": message}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// failure renders err as a tool-level error result.
func failure(err error) Result {
	code, message := classify(err)
	return Result{"status": "error", "message": message, "code": code}
}

func classify(err error) (string, string) {
	var vErr *common.ValidationError
	var appErr *common.AppError
	switch {
	case errors.As(err, &vErr):
		return "VALIDATION_ERROR", vErr.Message
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "INVALID_QUANTITY", cart.ErrInvalidQuantity.Error()
	case errors.Is(err, cart.ErrProductNotFound):
		return "PRODUCT_NOT_FOUND", cart.ErrProductNotFound.Error()
	case errors.Is(err, cart.ErrItemNotInCart):
		return "ITEM_NOT_IN_CART", cart.ErrItemNotInCart.Error()
	case errors.Is(err, cart.ErrUpstreamUnavailable):
		return "UPSTREAM_UNAVAILABLE", cart.ErrUpstreamUnavailable.Error()
	case errors.Is(err, cart.ErrCartBusy):
		return "CART_BUSY", cart.ErrCartBusy.Error()
	case errors.As(err, &appErr):
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		return code, appErr.Message
	default:
		return "INTERNAL", "tool execution failed"
	}
}

// decode parses raw into dst and validates it. Missing or null parameters
// decode as an empty object.
// ownedParams are tool parameters naming the cart owner.
type ownedParams interface {
	owner() *string
}

func (p *userParams) owner() *string        { return &p.UserID }
func (p *addParams) owner() *string         { return &p.UserID }
func (p *removeParams) owner() *string      { return &p.UserID }
func (p *setQuantityParams) owner() *string { return &p.UserID }

// decode unmarshals raw into dst and validates it. A missing user_id falls
// back to the subject of the caller's bearer token.
func decode(ctx context.Context, raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &common.ValidationError{Field: typeErr.Field, Message: fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type.Kind().String()))}
		}
		return &common.ValidationError{Message: "invalid parameters"}
	}
	if o, ok := dst.(ownedParams); ok && strings.TrimSpace(*o.owner()) == "" {
		if subject, ok := common.UserID(ctx); ok {
			*o.owner() = subject
		}
	}
	return common.ValidateStruct(dst)
}

func jsonKind(goKind string) string {
	switch goKind {
	case "int", "int64", "float64", "ptr":
		return "number"
	default:
		return goKind
	}
}
