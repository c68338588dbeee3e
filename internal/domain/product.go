package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Image       string
	Stock       int32
	SoldCount   int32
	IsAvailable bool
	IsFeatured  bool
	CreatedAt   time.Time
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}
