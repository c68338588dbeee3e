package domain

import "time"

type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldCommitted HoldStatus = "committed"
	HoldReleased  HoldStatus = "released"
	HoldExpired   HoldStatus = "expired"
)

type HoldItem struct {
	ProductID int64
	Quantity  int32
}

// StockHold keeps stock aside between checkout session creation and payment.
type StockHold struct {
	ID        string
	Receipt   string
	Items     []HoldItem
	Status    HoldStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (h *StockHold) IsExpired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

type StockLevel struct {
	ProductID int64
	OnHand    int32
	Held      int32
}

func (s StockLevel) Available() int32 {
	return s.OnHand - s.Held
}
