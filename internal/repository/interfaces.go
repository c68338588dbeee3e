package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
)

type OrderRepository interface {
	// CreateOrderWithEvent stores the order and its outbox event atomically.
	CreateOrderWithEvent(ctx context.Context, order *domain.Order, event *OutboxEvent) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	ListOrdersByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
}

type AddressRepository interface {
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	GetAddress(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
	CreateAddress(ctx context.Context, a *domain.Address) error
	UpdateAddress(ctx context.Context, a *domain.Address) error
	DeleteAddress(ctx context.Context, userID, id uuid.UUID) error
	SetDefaultAddress(ctx context.Context, userID, id uuid.UUID) error
}

type CouponRepository interface {
	GetActiveCoupon(ctx context.Context, userID uuid.UUID) (*domain.Coupon, error)
	FindActiveCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.Coupon, error)
	ReplaceCoupon(ctx context.Context, c *domain.Coupon) error
	DeactivateCoupon(ctx context.Context, userID uuid.UUID, code string) error
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	MarkUserVerified(ctx context.Context, id uuid.UUID) error
	DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error)
}

type PaymentAttemptRepository interface {
	RecordAttempt(ctx context.Context, a *domain.PaymentAttempt) error
	ListReconcilable(ctx context.Context, maxAttempts, limit int) ([]*domain.PaymentAttempt, error)
	MarkAttempt(ctx context.Context, id uuid.UUID, status domain.AttemptStatus, reason string) error
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

var (
	_ OrderRepository          = (*Repository)(nil)
	_ AddressRepository        = (*Repository)(nil)
	_ CouponRepository         = (*Repository)(nil)
	_ UserRepository           = (*Repository)(nil)
	_ PaymentAttemptRepository = (*Repository)(nil)
	_ OutboxRepository         = (*Repository)(nil)
)
