package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// position along the fulfilment sequence; cancelled sits outside it
var statusSequence = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	if st == OrderStatusCancelled {
		return st, true
	}
	_, ok := statusSequence[st]
	return st, ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether an order may move from one status to another.
// Movement is forward only, skipping is allowed, cancelled is reachable from any
// non-terminal status.
func CanTransitionTo(from, to OrderStatus) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	fromPos, okFrom := statusSequence[from]
	toPos, okTo := statusSequence[to]
	return okFrom && okTo && toPos > fromPos
}

type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Items            []OrderItem
	TotalAmount      decimal.Decimal
	DiscountAmount   decimal.Decimal
	Currency         string
	CouponCode       string
	ShippingAddress  AddressSnapshot
	BillingAddress   AddressSnapshot
	Status           OrderStatus
	GatewayOrderID   string
	GatewayPaymentID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderPaidEvent is the outbox payload published once an order is persisted.
type OrderPaidEvent struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	Items          []OrderItem     `json:"items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	GatewayOrderID string          `json:"gateway_order_id"`
	PaidAt         time.Time       `json:"paid_at"`
}

const EventTypeOrderPaid = "order.paid"
