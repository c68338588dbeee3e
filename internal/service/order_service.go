package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/pkg/logger"
)

const (
	// ArchiveWindow is how far back a customer sees their orders.
	ArchiveWindow = 15 * 24 * time.Hour

	DefaultPageSize = 50
	MaxPageSize     = 200
)

type OrderService struct {
	orders  repository.OrderRepository
	catalog ProductCatalog
	now     func() time.Time
}

func NewOrderService(orders repository.OrderRepository, catalog ProductCatalog) *OrderService {
	return &OrderService{orders: orders, catalog: catalog, now: time.Now}
}

// ListUserOrders returns the orders of a user placed within the archive window,
// newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.orders.ListOrdersByUserSince(ctx, userID, s.now().Add(-ArchiveWindow))
	if err != nil {
		return nil, toDomainError(err, "list orders")
	}
	s.fillProductDetails(ctx, orders)
	return orders, nil
}

// GetOrder returns an order of the user. Orders of other users are not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, toDomainError(err, "load order")
	}
	if order.UserID != userID {
		return nil, domain.NotFound("order")
	}
	s.fillProductDetails(ctx, []*domain.Order{order})
	return order, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	if offset < 0 {
		return nil, domain.Validation("offset must not be negative")
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	orders, err := s.orders.ListOrders(ctx, limit, offset)
	if err != nil {
		return nil, toDomainError(err, "list orders")
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, raw string) (*domain.Order, error) {
	to, ok := domain.ParseOrderStatus(raw)
	if !ok {
		return nil, domain.Validation("invalid order status %q", raw)
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, toDomainError(err, "load order")
	}
	if !domain.CanTransitionTo(order.Status, to) {
		return nil, domain.IllegalTransition(order.Status, to)
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, order.Status, to); err != nil {
		return nil, toDomainError(err, "update order status")
	}

	logger.FromContext(ctx).Info("order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("from", order.Status.String()),
		zap.String("to", to.String()))

	order.Status = to
	order.UpdatedAt = s.now()
	return order, nil
}

// fillProductDetails sets missing names and images from the catalog.
func (s *OrderService) fillProductDetails(ctx context.Context, orders []*domain.Order) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				ids = append(ids, it.ProductID)
			}
		}
	}
	if len(ids) == 0 {
		return
	}

	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		logger.FromContext(ctx).Warn("orders listed without catalog details", zap.Error(err))
		return
	}
	for _, o := range orders {
		for i := range o.Items {
			p, ok := products[o.Items[i].ProductID]
			if !ok {
				continue
			}
			if o.Items[i].Name == "" {
				o.Items[i].Name = p.Name
			}
			if o.Items[i].Image == "" {
				o.Items[i].Image = p.Image
			}
		}
	}
}

