package store

import (
	"errors"

	"github.com/fjod/redclaw/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not tracked")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrHoldNotFound      = errors.New("stock hold not found")
	ErrHoldExpired       = errors.New("stock hold has expired")
	ErrInvalidStatus     = errors.New("invalid stock hold status for this operation")
)

// HoldStore keeps short-lived stock holds for open checkout sessions.
type HoldStore interface {
	// Levels returns stock levels for the given products; unknown ids are skipped.
	Levels(productIDs []int64) []domain.StockLevel
	// Hold sets stock aside for a checkout identified by receipt.
	Hold(receipt string, items []domain.HoldItem) (*domain.StockHold, error)
	// Commit turns an active hold into a permanent deduction.
	Commit(holdID string) (*domain.StockHold, error)
	// Release returns the stock of an active hold.
	Release(holdID string) error
	// SetStock sets the on-hand quantity of a product.
	SetStock(productID int64, quantity int32)
	Close() error
}
