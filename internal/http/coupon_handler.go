package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/validation"
)

type CouponService interface {
	GetActiveCoupon(ctx context.Context, userID uuid.UUID) (*domain.Coupon, error)
	ValidateCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.Coupon, error)
}

type CouponHandler struct {
	coupons CouponService
	timeout time.Duration
}

func NewCouponHandler(coupons CouponService, timeout time.Duration) *CouponHandler {
	return &CouponHandler{coupons: coupons, timeout: timeout}
}

type CouponDTO struct {
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discountPercentage"`
	ExpirationDate     time.Time `json:"expirationDate"`
}

type ValidateCouponRequestDTO struct {
	Code string `json:"code" validate:"required,max=32"`
}

type ValidateCouponResponseDTO struct {
	Message            string `json:"message"`
	Code               string `json:"code"`
	DiscountPercentage int    `json:"discountPercentage"`
}

// GET /api/v1/coupons
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	c, err := h.coupons.GetActiveCoupon(ctx, userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CouponDTO{
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
		ExpirationDate:     c.ExpirationDate,
	})
}

// POST /api/v1/coupons/validate
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := getUserIDFromContext(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}

	var req ValidateCouponRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		handleError(w, r, err)
		return
	}

	c, err := h.coupons.ValidateCoupon(ctx, userID, req.Code)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ValidateCouponResponseDTO{
		Message:            "Coupon is valid",
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
	})
}
