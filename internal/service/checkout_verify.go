package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/cache"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/gateway"
	"github.com/fjod/redclaw/internal/pricing"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/pkg/logger"
)

const reconcileBatchSize = 50

// VerifyPayment checks the gateway signature and status of a payment and
// materializes the order. Verifying the same payment again returns the order
// created the first time.
func (s *CheckoutService) VerifyPayment(ctx context.Context, req *domain.VerifyRequest) (*domain.VerifyResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, domain.Validation("order id, payment id and signature are required")
	}
	log := logger.FromContext(ctx).With(
		zap.String("gateway_order_id", req.OrderID),
		zap.String("gateway_payment_id", req.PaymentID))

	if !s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		log.Warn("payment signature mismatch")
		return nil, domain.InvalidSignature()
	}

	if res, err := s.existingOrder(ctx, req.OrderID, req.UserID); res != nil || err != nil {
		return res, err
	}

	release, err := s.locker.Acquire(ctx, cache.VerifyLockKey(req.OrderID))
	switch {
	case errors.Is(err, cache.ErrLocked):
		return nil, domain.Conflict("payment verification already in progress, retry shortly")
	case err != nil:
		// the unique gateway order id still keeps this idempotent
		log.Warn("verification lock unavailable", zap.Error(err))
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release verification lock", zap.Error(err))
			}
		}()
		// a concurrent call may have finished while we waited for the lock
		if res, err := s.existingOrder(ctx, req.OrderID, req.UserID); res != nil || err != nil {
			return res, err
		}
	}

	gwOrder, err := s.gateway.FetchOrder(ctx, req.OrderID)
	if err != nil {
		log.Error("failed to fetch gateway order", zap.Error(err))
		return nil, domain.Gateway("failed to confirm payment status", err)
	}

	if gwOrder.Status != gateway.StatusPaid {
		s.recordAttempt(ctx, &domain.PaymentAttempt{
			GatewayOrderID:   req.OrderID,
			GatewayPaymentID: req.PaymentID,
			UserID:           req.UserID,
			Status:           domain.AttemptUnpaid,
			GatewayStatus:    gwOrder.Status,
			Reason:           "verification before payment completed",
		})
		log.Warn("payment not completed", zap.String("gateway_status", gwOrder.Status))
		return nil, domain.PaymentNotCompleted(gwOrder.Status)
	}

	order, replayed, err := s.materialize(ctx, gwOrder, req.PaymentID, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPersistence) {
			s.recordAttempt(ctx, &domain.PaymentAttempt{
				GatewayOrderID:   req.OrderID,
				GatewayPaymentID: req.PaymentID,
				UserID:           req.UserID,
				Status:           domain.AttemptReconcile,
				GatewayStatus:    gwOrder.Status,
				Reason:           err.Error(),
			})
		}
		log.Error("paid order could not be materialized",
			zap.Int64("amount", gwOrder.Amount),
			zap.String("receipt", gwOrder.Receipt),
			zap.Any("notes", gwOrder.Notes),
			zap.Error(err))
		return nil, err
	}

	log.Info("payment verified", zap.String("order_id", order.ID.String()), zap.Bool("replayed", replayed))
	return &domain.VerifyResult{OrderID: order.ID, Replayed: replayed}, nil
}

// existingOrder returns the result of an earlier verification, if any.
func (s *CheckoutService) existingOrder(ctx context.Context, gatewayOrderID string, userID uuid.UUID) (*domain.VerifyResult, error) {
	order, err := s.orders.GetOrderByGatewayID(ctx, gatewayOrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, toDomainError(err, "load order")
	}
	if order.UserID != userID {
		return nil, domain.NotFound("order")
	}
	return &domain.VerifyResult{OrderID: order.ID, Replayed: true}, nil
}

// materialize turns a paid gateway order into a local order. caller may be
// uuid.Nil when no user drives the call.
func (s *CheckoutService) materialize(ctx context.Context, gwOrder *gateway.Order, paymentID string, caller uuid.UUID) (*domain.Order, bool, error) {
	log := logger.FromContext(ctx).With(zap.String("gateway_order_id", gwOrder.ID))

	notes, err := domain.DecodeCheckoutNotes(gwOrder.Notes)
	if err != nil {
		return nil, false, domain.Validation("payment order carries no checkout details: %v", err)
	}
	if caller != uuid.Nil && notes.UserID != caller {
		return nil, false, domain.Forbidden("payment belongs to another user")
	}

	if _, err := s.users.GetUserByID(ctx, notes.UserID); err != nil {
		return nil, false, toDomainError(err, "load user")
	}
	shipping, err := s.addresses.GetAddress(ctx, notes.UserID, notes.AddressID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return nil, false, domain.NotFound("shipping address")
		}
		return nil, false, toDomainError(err, "load shipping address")
	}
	billing := shipping
	if notes.BillingAddressID != notes.AddressID {
		billing, err = s.addresses.GetAddress(ctx, notes.UserID, notes.BillingAddressID)
		if err != nil {
			if errors.Is(err, repository.ErrAddressNotFound) {
				return nil, false, domain.NotFound("billing address")
			}
			return nil, false, toDomainError(err, "load billing address")
		}
	}

	if notes.CouponCode != "" {
		if err := s.coupons.DeactivateCoupon(ctx, notes.UserID, notes.CouponCode); err != nil {
			return nil, false, domain.Persistence("deactivate coupon", err)
		}
	}

	currency := gwOrder.Currency
	if currency == "" {
		currency = domain.Currency
	}
	order := &domain.Order{
		ID:               uuid.New(),
		UserID:           notes.UserID,
		Items:            s.orderItems(ctx, notes.Items),
		TotalAmount:      pricing.FromMinorUnits(gwOrder.Amount),
		DiscountAmount:   notes.DiscountAmount,
		Currency:         currency,
		CouponCode:       notes.CouponCode,
		ShippingAddress:  shipping.Snapshot(),
		BillingAddress:   billing.Snapshot(),
		Status:           domain.OrderStatusPending,
		GatewayOrderID:   gwOrder.ID,
		GatewayPaymentID: paymentID,
	}

	event, err := orderPaidEvent(order, s.now())
	if err != nil {
		return nil, false, domain.Persistence("build order event", err)
	}

	err = s.orders.CreateOrderWithEvent(ctx, order, event)
	if errors.Is(err, repository.ErrDuplicateOrder) {
		existing, getErr := s.orders.GetOrderByGatewayID(ctx, gwOrder.ID)
		if getErr != nil {
			return nil, false, toDomainError(getErr, "load order")
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, domain.Persistence("save order", err)
	}

	s.commitStock(ctx, notes)
	log.Info("order created", zap.String("order_id", order.ID.String()), zap.String("total", order.TotalAmount.StringFixed(2)))
	return order, false, nil
}

// orderItems copies the line items and fills names and images from the catalog.
func (s *CheckoutService) orderItems(ctx context.Context, items []domain.LineItem) []domain.OrderItem {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		logger.FromContext(ctx).Warn("order items without catalog details", zap.Error(err))
	}

	out := make([]domain.OrderItem, len(items))
	for i, it := range items {
		out[i] = domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
		if p, ok := products[it.ProductID]; ok {
			out[i].Name = p.Name
			out[i].Image = p.Image
		}
	}
	return out
}

// commitStock turns the session hold into a sale. Failures are logged only,
// the payment has already been taken.
func (s *CheckoutService) commitStock(ctx context.Context, notes *domain.CheckoutNotes) {
	log := logger.FromContext(ctx)
	items := holdItems(notes.Items)

	holdOK := false
	if notes.HoldID != "" {
		if _, err := s.holds.Commit(notes.HoldID); err != nil {
			log.Warn("stock hold not committed", zap.String("hold_id", notes.HoldID), zap.Error(err))
		} else {
			holdOK = true
		}
	}

	if err := s.catalog.DecreaseStock(ctx, items); err != nil {
		log.Error("failed to decrease catalog stock", zap.Error(err))
		return
	}

	if holdOK {
		return
	}
	// the hold lapsed, so the in-memory levels no longer include this sale
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		log.Warn("failed to resync stock levels", zap.Error(err))
		return
	}
	for _, p := range products {
		s.holds.SetStock(p.ID, p.Stock)
	}
}

func (s *CheckoutService) recordAttempt(ctx context.Context, a *domain.PaymentAttempt) {
	if err := s.attempts.RecordAttempt(ctx, a); err != nil {
		logger.FromContext(ctx).Error("failed to record payment attempt",
			zap.String("gateway_order_id", a.GatewayOrderID),
			zap.String("status", string(a.Status)),
			zap.Error(err))
	}
}

// Reconcile retries materialization of paid gateway orders that have no local
// order yet. It returns the number of attempts resolved.
func (s *CheckoutService) Reconcile(ctx context.Context) (int, error) {
	attempts, err := s.attempts.ListReconcilable(ctx, domain.MaxReconcileAttempts, reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list reconcilable attempts: %w", err)
	}

	resolved := 0
	for _, a := range attempts {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if s.reconcileOne(ctx, a) {
			resolved++
		}
	}
	return resolved, nil
}

func (s *CheckoutService) reconcileOne(ctx context.Context, a *domain.PaymentAttempt) bool {
	log := logger.FromContext(ctx).With(
		zap.String("attempt_id", a.ID.String()),
		zap.String("gateway_order_id", a.GatewayOrderID))

	release, err := s.locker.Acquire(ctx, cache.VerifyLockKey(a.GatewayOrderID))
	if errors.Is(err, cache.ErrLocked) {
		return false
	}
	if err == nil {
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	mark := func(status domain.AttemptStatus, reason string) {
		if err := s.attempts.MarkAttempt(ctx, a.ID, status, reason); err != nil {
			log.Error("failed to update payment attempt", zap.Error(err))
		}
	}

	gwOrder, err := s.gateway.FetchOrder(ctx, a.GatewayOrderID)
	if err != nil {
		mark(domain.AttemptReconcile, "fetch gateway order: "+err.Error())
		return false
	}
	if gwOrder.Status != gateway.StatusPaid {
		mark(domain.AttemptReconcile, "gateway status "+gwOrder.Status)
		return false
	}

	order, _, err := s.materialize(ctx, gwOrder, a.GatewayPaymentID, uuid.Nil)
	if err != nil {
		log.Warn("reconciliation failed", zap.Int("attempts", a.Attempts+1), zap.Error(err))
		mark(domain.AttemptReconcile, err.Error())
		return false
	}

	mark(domain.AttemptResolved, "order "+order.ID.String())
	log.Info("payment reconciled", zap.String("order_id", order.ID.String()))
	return true
}

func orderPaidEvent(order *domain.Order, paidAt time.Time) (*repository.OutboxEvent, error) {
	payload, err := json.Marshal(domain.OrderPaidEvent{
		OrderID:        order.ID.String(),
		UserID:         order.UserID.String(),
		Items:          order.Items,
		TotalAmount:    order.TotalAmount,
		Currency:       order.Currency,
		GatewayOrderID: order.GatewayOrderID,
		PaidAt:         paidAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order paid event: %w", err)
	}
	return &repository.OutboxEvent{
		AggregateId: order.ID.String(),
		EventType:   domain.EventTypeOrderPaid,
		Payload:     payload,
	}, nil
}
