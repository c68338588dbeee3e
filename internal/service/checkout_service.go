package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/cache"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/gateway"
	"github.com/fjod/redclaw/internal/pricing"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/internal/store"
	"github.com/fjod/redclaw/pkg/logger"
)

// receipts are capped by the gateway
const maxReceiptLength = 40

type CheckoutDeps struct {
	Orders    repository.OrderRepository
	Addresses repository.AddressRepository
	Coupons   repository.CouponRepository
	Users     repository.UserRepository
	Attempts  repository.PaymentAttemptRepository
	Catalog   ProductCatalog
	Holds     store.HoldStore
	Gateway   PaymentGateway
	Locker    cache.Locker
}

type CheckoutService struct {
	orders    repository.OrderRepository
	addresses repository.AddressRepository
	coupons   repository.CouponRepository
	users     repository.UserRepository
	attempts  repository.PaymentAttemptRepository
	catalog   ProductCatalog
	holds     store.HoldStore
	gateway   PaymentGateway
	locker    cache.Locker
	now       func() time.Time
}

func NewCheckoutService(deps CheckoutDeps) *CheckoutService {
	return &CheckoutService{
		orders:    deps.Orders,
		addresses: deps.Addresses,
		coupons:   deps.Coupons,
		users:     deps.Users,
		attempts:  deps.Attempts,
		catalog:   deps.Catalog,
		holds:     deps.Holds,
		gateway:   deps.Gateway,
		locker:    deps.Locker,
		now:       time.Now,
	}
}

// CreateSession prices the items, holds their stock and opens a gateway order
// carrying everything verification needs in its notes.
func (s *CheckoutService) CreateSession(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	log := logger.FromContext(ctx).With(zap.String("user_id", req.UserID.String()))

	if len(req.Items) == 0 {
		return nil, domain.Validation("products are required")
	}
	if len(req.Items) > domain.MaxCheckoutLines {
		return nil, domain.Validation("at most %d products can be checked out at once", domain.MaxCheckoutLines)
	}
	if req.AddressID == uuid.Nil {
		return nil, domain.Validation("shipping address is required")
	}
	billingID := req.BillingAddressID
	if billingID == uuid.Nil {
		billingID = req.AddressID
	}

	if _, err := s.addresses.GetAddress(ctx, req.UserID, req.AddressID); err != nil {
		return nil, toDomainError(err, "load shipping address")
	}
	if billingID != req.AddressID {
		if _, err := s.addresses.GetAddress(ctx, req.UserID, billingID); err != nil {
			if errors.Is(err, repository.ErrAddressNotFound) {
				return nil, domain.NotFound("billing address")
			}
			return nil, toDomainError(err, "load billing address")
		}
	}

	items, err := s.repriceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	coupon, err := s.applicableCoupon(ctx, req.UserID, req.CouponCode)
	if err != nil {
		return nil, err
	}
	quote := pricing.Price(items, coupon)

	now := s.now()
	receipt := newReceipt(req.UserID, now)
	hold, err := s.holds.Hold(receipt, holdItems(items))
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) || errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.Validation("insufficient stock for the requested products")
		}
		return nil, fmt.Errorf("hold stock: %w", err)
	}

	notes := &domain.CheckoutNotes{
		UserID:           req.UserID,
		AddressID:        req.AddressID,
		BillingAddressID: billingID,
		CouponCode:       quote.CouponCode,
		DiscountAmount:   quote.Discount,
		HoldID:           hold.ID,
		Items:            items,
	}
	encoded, err := notes.Encode()
	if err != nil {
		s.releaseHold(ctx, hold.ID)
		if errors.Is(err, domain.ErrNotesTooLarge) {
			return nil, domain.Validation("too many products in one checkout")
		}
		return nil, fmt.Errorf("encode checkout notes: %w", err)
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   pricing.ToMinorUnits(quote.Total),
		Currency: domain.Currency,
		Receipt:  receipt,
		Notes:    encoded,
	})
	if err != nil {
		s.releaseHold(ctx, hold.ID)
		log.Error("gateway order creation failed", zap.String("receipt", receipt), zap.Error(err))
		return nil, domain.Gateway("failed to create payment order", err)
	}

	if pricing.QualifiesForBonus(quote.Total) {
		s.mintBonusCoupon(ctx, req.UserID)
	}

	log.Info("checkout session created",
		zap.String("gateway_order_id", gwOrder.ID),
		zap.String("total", quote.Total.StringFixed(2)),
		zap.String("discount", quote.Discount.StringFixed(2)),
		zap.String("hold_id", hold.ID))

	return &domain.CheckoutSession{
		OrderID:        gwOrder.ID,
		Amount:         gwOrder.Amount,
		Currency:       gwOrder.Currency,
		KeyID:          s.gateway.KeyID(),
		TotalAmount:    quote.Total,
		DiscountAmount: quote.Discount,
	}, nil
}

// repriceItems checks client prices against the catalog and returns the items
// with catalog prices.
func (s *CheckoutService) repriceItems(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, domain.Validation("quantity of product %d must be at least 1", it.ProductID)
		}
		// holds count in int32
		if it.Quantity > math.MaxInt32 {
			return nil, domain.Validation("quantity of product %d is too large", it.ProductID)
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, toDomainError(err, "load products")
	}

	repriced := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, domain.NotFound(fmt.Sprintf("product %d", it.ProductID))
		}
		if !p.IsAvailable {
			return nil, domain.Validation("product %d is not available", it.ProductID)
		}
		if !it.Price.Equal(p.Price) {
			return nil, domain.Validation("price changed for product %d", it.ProductID)
		}
		repriced = append(repriced, domain.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: p.Price})
	}
	return repriced, nil
}

// applicableCoupon returns the caller's usable coupon with code. Unknown or
// expired codes yield nil so the checkout proceeds without a discount.
func (s *CheckoutService) applicableCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	coupon, err := s.coupons.FindActiveCoupon(ctx, userID, code)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, toDomainError(err, "load coupon")
	}
	if !coupon.IsUsable(s.now()) {
		return nil, nil
	}
	return coupon, nil
}

func (s *CheckoutService) mintBonusCoupon(ctx context.Context, userID uuid.UUID) {
	log := logger.FromContext(ctx)

	coupon, err := pricing.NewBonusCoupon(userID, s.now())
	if err != nil {
		log.Error("failed to generate bonus coupon", zap.Error(err))
		return
	}
	if err := s.coupons.ReplaceCoupon(ctx, coupon); err != nil {
		log.Error("failed to store bonus coupon", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	log.Info("bonus coupon issued", zap.String("user_id", userID.String()), zap.String("code", coupon.Code))
}

func (s *CheckoutService) releaseHold(ctx context.Context, holdID string) {
	if err := s.holds.Release(holdID); err != nil {
		logger.FromContext(ctx).Warn("failed to release stock hold", zap.String("hold_id", holdID), zap.Error(err))
	}
}

func newReceipt(userID uuid.UUID, now time.Time) string {
	r := fmt.Sprintf("rcpt_%s_%d", userID.String()[:8], now.UnixMilli())
	if len(r) > maxReceiptLength {
		r = r[:maxReceiptLength]
	}
	return r
}

func holdItems(items []domain.LineItem) []domain.HoldItem {
	out := make([]domain.HoldItem, len(items))
	for i, it := range items {
		out[i] = domain.HoldItem{ProductID: it.ProductID, Quantity: int32(it.Quantity)}
	}
	return out
}
