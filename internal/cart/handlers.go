package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/store-bridge/internal/common"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type addItemRequest struct {
	ProductID int  `json:"product_id" validate:"required,gt=0"`
	Quantity  *int `json:"quantity" validate:"omitempty,lte=10000"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=10000"`
}

type userParam struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// Create allocates a guest user id with an empty cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, cart, err := h.Svc.NewGuest(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]any{
		"user_id": userID,
		"cart":    cart,
	})
}

// Get returns the user's cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	cart, err := h.Svc.View(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cart)
}

// AddItem adds quantity (default 1) of a product to the user's cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := common.ValidateStruct(payload); err != nil {
		h.writeError(w, err)
		return
	}
	quantity := 1
	if payload.Quantity != nil {
		quantity = *payload.Quantity
	}
	cart, err := h.Svc.Add(r.Context(), userID, payload.ProductID, quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cart)
}

// UpdateItem sets the product's quantity; zero removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	var payload setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := common.ValidateStruct(payload); err != nil {
		h.writeError(w, err)
		return
	}
	cart, err := h.Svc.SetQuantity(r.Context(), userID, productID, *payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cart)
}

// RemoveItem removes the product's line, or ?quantity units of it.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}
	var quantity *int
	if raw := strings.TrimSpace(r.URL.Query().Get("quantity")); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, &ValidationError{Field: "quantity", Message: "quantity must be an integer"})
			return
		}
		quantity = &q
	}
	cart, err := h.Svc.Remove(r.Context(), userID, productID, quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cart)
}

// Clear empties the user's cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	cart, err := h.Svc.Clear(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cart)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	param := userParam{UserID: strings.TrimSpace(chi.URLParam(r, "userId"))}
	if err := common.ValidateStruct(param); err != nil {
		h.writeError(w, err)
		return "", false
	}
	return param.UserID, true
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "productId"))
	if err != nil || id <= 0 {
		h.writeError(w, &ValidationError{Field: "product_id", Message: "product_id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// StatusFor maps a cart error onto its HTTP status and error code.
func StatusFor(err error) (int, string) {
	var vErr *ValidationError
	var appErr *common.AppError
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return http.StatusBadRequest, "INVALID_QUANTITY"
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, ErrProductNotFound):
		return http.StatusNotFound, "PRODUCT_NOT_FOUND"
	case errors.Is(err, ErrItemNotInCart):
		return http.StatusNotFound, "ITEM_NOT_IN_CART"
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, ErrCartBusy):
		return http.StatusServiceUnavailable, "CART_BUSY"
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, appErr.Code
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	status, code := StatusFor(err)
	var details any
	var vErr *ValidationError
	if errors.As(err, &vErr) && vErr.Field != "" {
		details = map[string]any{"field": vErr.Field}
	}
	message := publicMessage(err, status)
	common.JSONError(w, status, code, message, details)
}

func publicMessage(err error, status int) string {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return vErr.Message
	case errors.Is(err, ErrInvalidQuantity):
		return ErrInvalidQuantity.Error()
	case errors.Is(err, ErrProductNotFound):
		return ErrProductNotFound.Error()
	case errors.Is(err, ErrItemNotInCart):
		return ErrItemNotInCart.Error()
	case errors.Is(err, ErrUpstreamUnavailable):
		return ErrUpstreamUnavailable.Error()
	case errors.Is(err, ErrCartBusy):
		return ErrCartBusy.Error()
	case status >= http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}
