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

type OrderService interface {
	ListUserOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	ListAllOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

type OrderItemDTO struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type AddressSnapshotDTO struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Country      string `json:"country"`
}

type OrderResponseDTO struct {
	ID               string             `json:"id"`
	UserID           string             `json:"userId"`
	Products         []OrderItemDTO     `json:"products"`
	TotalAmount      float64            `json:"totalAmount"`
	DiscountAmount   float64            `json:"discountAmount"`
	Currency         string             `json:"currency"`
	CouponCode       string             `json:"couponCode,omitempty"`
	ShippingAddress  AddressSnapshotDTO `json:"shippingAddress"`
	BillingAddress   AddressSnapshotDTO `json:"billingAddress"`
	OrderStatus      string             `json:"orderStatus"`
	GatewayOrderID   string             `json:"razorpayOrderId"`
	GatewayPaymentID string             `json:"razorpayPaymentId"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

type OrderPageDTO struct {
	Orders []OrderResponseDTO `json:"orders"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type UpdateStatusRequestDTO struct {
	OrderStatus string `json:"orderStatus" validate:"required"`
}

func convertAddressSnapshot(a domain.AddressSnapshot) AddressSnapshotDTO {
	return AddressSnapshotDTO{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Pincode:      a.Pincode,
		Country:      a.Country,
	}
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
		})
	}
	return OrderResponseDTO{
		ID:               o.ID.String(),
		UserID:           o.UserID.String(),
		Products:         items,
		TotalAmount:      o.TotalAmount.InexactFloat64(),
		DiscountAmount:   o.DiscountAmount.InexactFloat64(),
		Currency:         o.Currency,
		CouponCode:       o.CouponCode,
		ShippingAddress:  convertAddressSnapshot(o.ShippingAddress),
		BillingAddress:   convertAddressSnapshot(o.BillingAddress),
		OrderStatus:      string(o.Status),
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: o.GatewayPaymentID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func convertOrders(orders []*domain.Order) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	return dtos
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid id")
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	orders, err := h.orders.ListUserOrders(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrders(orders))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/admin/orders?limit=&offset=
func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := intQuery(w, r, "offset")
	if !ok {
		return
	}

	orders, err := h.orders.ListAllOrders(ctx, limit, offset)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderPageDTO{Orders: convertOrders(orders), Limit: limit, Offset: offset})
}

// PATCH /api/v1/admin/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		handleError(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(ctx, orderID, req.OrderStatus)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return n, true
}
