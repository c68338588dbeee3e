package domain

import (
	"time"

	"github.com/google/uuid"
)

type Coupon struct {
	Code               string
	DiscountPercentage int
	ExpirationDate     time.Time
	UserID             uuid.UUID
	IsActive           bool
	CreatedAt          time.Time
}

func (c *Coupon) IsUsable(now time.Time) bool {
	return c.IsActive && now.Before(c.ExpirationDate)
}
