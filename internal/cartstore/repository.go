package cartstore

import (
	"context"
	"errors"

	"github.com/fjod/redclaw/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository persists one cart document per user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem adds quantity to the line of the product, creating cart and line as needed.
	AddItem(ctx context.Context, userID string, productID int64, quantity int) error
	UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID int64) error
	DeleteCart(ctx context.Context, userID string) error
}
