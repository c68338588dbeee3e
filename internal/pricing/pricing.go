package pricing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/redclaw/internal/domain"
)

const (
	BonusPercentage  = 5
	BonusValidity    = 30 * 24 * time.Hour
	couponCodePrefix = "GIFT"
	couponCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	couponCodeLength = 6
)

// BonusThreshold is the order total at which a gift coupon is minted.
var BonusThreshold = decimal.NewFromInt(20000)

var hundred = decimal.NewFromInt(100)

type Quote struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
}

func Subtotal(items []domain.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Discount is pct percent of subtotal rounded to whole currency units.
func Discount(subtotal decimal.Decimal, pct int) decimal.Decimal {
	return subtotal.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Round(0)
}

// Price computes the quote for items. A nil coupon means no discount.
func Price(items []domain.LineItem, coupon *domain.Coupon) Quote {
	q := Quote{Subtotal: Subtotal(items), Discount: decimal.Zero}
	if coupon != nil {
		q.Discount = Discount(q.Subtotal, coupon.DiscountPercentage)
		q.CouponCode = coupon.Code
	}
	q.Total = q.Subtotal.Sub(q.Discount)
	return q
}

func QualifiesForBonus(total decimal.Decimal) bool {
	return total.GreaterThanOrEqual(BonusThreshold)
}

// ToMinorUnits converts rupees to paise.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func NewCouponCode() (string, error) {
	buf := make([]byte, couponCodeLength)
	limit := big.NewInt(int64(len(couponCodeChars)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate coupon code: %w", err)
		}
		buf[i] = couponCodeChars[n.Int64()]
	}
	return couponCodePrefix + string(buf), nil
}

func NewBonusCoupon(userID uuid.UUID, now time.Time) (*domain.Coupon, error) {
	code, err := NewCouponCode()
	if err != nil {
		return nil, err
	}
	return &domain.Coupon{
		Code:               code,
		DiscountPercentage: BonusPercentage,
		ExpirationDate:     now.Add(BonusValidity),
		UserID:             userID,
		IsActive:           true,
		CreatedAt:          now,
	}, nil
}
