package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/validation"
)

type CheckoutService interface {
	CreateSession(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error)
	VerifyPayment(ctx context.Context, req *domain.VerifyRequest) (*domain.VerifyResult, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, timeout: timeout}
}

type CheckoutProductDTO struct {
	ID       int64           `json:"id" validate:"gt=0"`
	Quantity int             `json:"quantity" validate:"gte=1,lte=99"`
	Price    decimal.Decimal `json:"price"`
}

type CreateSessionRequestDTO struct {
	Products         []CheckoutProductDTO `json:"products" validate:"required,min=1,max=40,dive"`
	AddressID        string               `json:"addressId" validate:"required,uuid"`
	BillingAddressID string               `json:"billingAddressId" validate:"omitempty,uuid"`
	CouponCode       string               `json:"couponCode" validate:"max=32"`
}

type CheckoutSessionDTO struct {
	OrderID        string  `json:"orderId"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	KeyID          string  `json:"keyId"`
	TotalAmount    float64 `json:"totalAmount"`
	DiscountAmount float64 `json:"discountAmount"`
}

type VerifyPaymentRequestDTO struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyPaymentResponseDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

// POST /api/v1/payment/create-checkout-session
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	var req CreateSessionRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		handleError(w, r, err)
		return
	}

	items := make([]domain.LineItem, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, domain.LineItem{ProductID: p.ID, Quantity: p.Quantity, Price: p.Price})
	}
	billingID := uuid.Nil
	if req.BillingAddressID != "" {
		billingID = uuid.MustParse(req.BillingAddressID)
	}

	session, err := h.checkout.CreateSession(ctx, &domain.CheckoutRequest{
		UserID:           userID,
		Items:            items,
		AddressID:        uuid.MustParse(req.AddressID),
		BillingAddressID: billingID,
		CouponCode:       strings.TrimSpace(req.CouponCode),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutSessionDTO{
		OrderID:        session.OrderID,
		Amount:         session.Amount,
		Currency:       session.Currency,
		KeyID:          session.KeyID,
		TotalAmount:    session.TotalAmount.InexactFloat64(),
		DiscountAmount: session.DiscountAmount.InexactFloat64(),
	})
}

// POST /api/v1/payment/checkout-success
func (h *CheckoutHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	var req VerifyPaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.checkout.VerifyPayment(ctx, &domain.VerifyRequest{
		UserID:    userID,
		OrderID:   strings.TrimSpace(req.OrderID),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Signature: strings.TrimSpace(req.Signature),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	msg := "Payment successful, order created."
	if res.Replayed {
		msg = "Payment already processed."
	}
	respondJSON(w, http.StatusOK, VerifyPaymentResponseDTO{
		Success: true,
		Message: msg,
		OrderID: res.OrderID.String(),
	})
}
