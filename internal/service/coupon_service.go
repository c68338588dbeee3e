package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/repository"
)

type CouponService struct {
	coupons repository.CouponRepository
	now     func() time.Time
}

func NewCouponService(coupons repository.CouponRepository) *CouponService {
	return &CouponService{coupons: coupons, now: time.Now}
}

// GetActiveCoupon returns the usable coupon of a user.
func (s *CouponService) GetActiveCoupon(ctx context.Context, userID uuid.UUID) (*domain.Coupon, error) {
	coupon, err := s.coupons.GetActiveCoupon(ctx, userID)
	if err != nil {
		return nil, toDomainError(err, "load coupon")
	}
	if !coupon.IsUsable(s.now()) {
		return nil, domain.NotFound("coupon")
	}
	return coupon, nil
}

// ValidateCoupon reports whether code can be applied by the user.
func (s *CouponService) ValidateCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.Validation("coupon code is required")
	}
	coupon, err := s.coupons.FindActiveCoupon(ctx, userID, code)
	if err != nil {
		return nil, toDomainError(err, "load coupon")
	}
	if !coupon.IsUsable(s.now()) {
		return nil, domain.NotFound("coupon")
	}
	return coupon, nil
}
