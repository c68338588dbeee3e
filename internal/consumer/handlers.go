package consumer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/notify"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/pkg/logger"
)

// CartClearer empties the cart of a user.
type CartClearer interface {
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// Mailer sends the order confirmation e-mail.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, c notify.OrderConfirmation) error
}

// ClearCartHandler empties the buyer's cart once the order is paid.
type ClearCartHandler struct {
	carts CartClearer
}

func NewClearCartHandler(carts CartClearer) *ClearCartHandler {
	return &ClearCartHandler{carts: carts}
}

func (h *ClearCartHandler) Handle(ctx context.Context, event *domain.OrderPaidEvent) error {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return fmt.Errorf("invalid user_id %q: %w", event.UserID, err)
	}
	if err := h.carts.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	logger.FromContext(ctx).Info("cart cleared after payment",
		zap.String("user_id", event.UserID), zap.String("order_id", event.OrderID))
	return nil
}

// NotificationHandler e-mails the order confirmation to the buyer.
type NotificationHandler struct {
	users  repository.UserRepository
	mailer Mailer
}

func NewNotificationHandler(users repository.UserRepository, mailer Mailer) *NotificationHandler {
	return &NotificationHandler{users: users, mailer: mailer}
}

func (h *NotificationHandler) Handle(ctx context.Context, event *domain.OrderPaidEvent) error {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return fmt.Errorf("invalid user_id %q: %w", event.UserID, err)
	}
	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	return h.mailer.SendOrderConfirmation(ctx, notify.OrderConfirmation{
		To:       user.Email,
		Name:     user.Name,
		OrderID:  event.OrderID,
		Items:    event.Items,
		Currency: event.Currency,
		Total:    event.TotalAmount.StringFixed(2),
	})
}
