package domain

import (
	"time"

	"github.com/google/uuid"
)

type AttemptStatus string

const (
	// AttemptUnpaid records a verification the gateway did not report as paid.
	AttemptUnpaid AttemptStatus = "unpaid"
	// AttemptReconcile marks a paid gateway order without a local order.
	AttemptReconcile AttemptStatus = "reconcile"
	AttemptResolved  AttemptStatus = "resolved"
)

const MaxReconcileAttempts = 5

type PaymentAttempt struct {
	ID               uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	UserID           uuid.UUID
	Status           AttemptStatus
	GatewayStatus    string
	Reason           string
	Attempts         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
