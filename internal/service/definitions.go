package service

import (
	"context"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/gateway"
)

// ProductCatalog is the part of the catalog the services read and update.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	DecreaseStock(ctx context.Context, items []domain.HoldItem) error
}

// PaymentGateway creates and inspects gateway orders.
type PaymentGateway interface {
	KeyID() string
	VerifySignature(orderID, paymentID, signature string) bool
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error)
}
