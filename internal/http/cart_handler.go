package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/validation"
)

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, userID uuid.UUID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID uuid.UUID, productID int64) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=1,lte=99"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

type CartItemDTO struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type CartDTO struct {
	Items []CartItemDTO `json:"items"`
}

func convertCart(c *domain.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, CartItemDTO{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return CartDTO{Items: items}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusOK)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.carts.AddItem(ctx, userID, req.ProductID, req.Quantity); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusCreated)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.carts.UpdateQuantity(ctx, userID, productID, req.Quantity); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusOK)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(ctx, userID, productID); err != nil {
		handleError(w, r, err)
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusOK)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	if err := h.carts.ClearCart(ctx, userID); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CartDTO{Items: []CartItemDTO{}})
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID, status int) {
	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, status, convertCart(cart))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
