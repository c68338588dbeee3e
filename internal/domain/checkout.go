package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const Currency = "INR"

// LineItem is a (product, quantity, price) tuple of a cart or an order.
type LineItem struct {
	ProductID int64           `json:"id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CheckoutRequest struct {
	UserID           uuid.UUID
	Items            []LineItem
	AddressID        uuid.UUID
	BillingAddressID uuid.UUID
	CouponCode       string
}

type CheckoutSession struct {
	OrderID        string
	Amount         int64
	Currency       string
	KeyID          string
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
}

type VerifyRequest struct {
	UserID    uuid.UUID
	OrderID   string
	PaymentID string
	Signature string
}

type VerifyResult struct {
	OrderID uuid.UUID
	// Replayed is set when the order had been materialized by an earlier call.
	Replayed bool
}

// Note keys stored on the gateway order.
const (
	noteUserID           = "userId"
	noteAddressID        = "addressId"
	noteBillingAddressID = "billingAddressId"
	noteCouponCode       = "couponCode"
	noteDiscountAmount   = "discountAmount"
	noteHoldID           = "holdId"
	noteProducts         = "products"
)

// Gateway limits on order notes.
const (
	MaxNotes           = 15
	MaxNoteValueLength = 256
)

// MaxCheckoutLines bounds the distinct products of one checkout so the
// encoded line items always fit the notes left after the fixed keys.
const MaxCheckoutLines = 40

var ErrNotesTooLarge = errors.New("checkout does not fit in gateway notes")

// CheckoutNotes is the pending checkout carried by the gateway order between
// session creation and verification.
type CheckoutNotes struct {
	UserID           uuid.UUID
	AddressID        uuid.UUID
	BillingAddressID uuid.UUID
	CouponCode       string
	DiscountAmount   decimal.Decimal
	HoldID           string
	Items            []LineItem
}

// Encode renders the notes for the gateway. The line items are split across
// "products", "products_1", ... so no value exceeds MaxNoteValueLength.
func (n *CheckoutNotes) Encode() (map[string]string, error) {
	products, err := json.Marshal(n.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}
	notes := map[string]string{
		noteUserID:           n.UserID.String(),
		noteAddressID:        n.AddressID.String(),
		noteBillingAddressID: n.BillingAddressID.String(),
		noteCouponCode:       n.CouponCode,
		noteDiscountAmount:   n.DiscountAmount.StringFixed(2),
		noteHoldID:           n.HoldID,
	}
	for k, v := range notes {
		if len(v) > MaxNoteValueLength {
			return nil, fmt.Errorf("%w: note %s is %d characters", ErrNotesTooLarge, k, len(v))
		}
	}

	chunks := (len(products) + MaxNoteValueLength - 1) / MaxNoteValueLength
	if len(notes)+chunks > MaxNotes {
		return nil, fmt.Errorf("%w: %d line items need %d notes", ErrNotesTooLarge, len(n.Items), len(notes)+chunks)
	}
	for i := 0; i < chunks; i++ {
		end := min((i+1)*MaxNoteValueLength, len(products))
		notes[productsKey(i)] = string(products[i*MaxNoteValueLength : end])
	}
	return notes, nil
}

func productsKey(i int) string {
	if i == 0 {
		return noteProducts
	}
	return noteProducts + "_" + strconv.Itoa(i)
}

func DecodeCheckoutNotes(notes map[string]string) (*CheckoutNotes, error) {
	userID, err := uuid.Parse(notes[noteUserID])
	if err != nil {
		return nil, fmt.Errorf("note %s: %w", noteUserID, err)
	}
	addressID, err := uuid.Parse(notes[noteAddressID])
	if err != nil {
		return nil, fmt.Errorf("note %s: %w", noteAddressID, err)
	}

	billingID := addressID
	if raw := notes[noteBillingAddressID]; raw != "" {
		billingID, err = uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", noteBillingAddressID, err)
		}
	}

	discount := decimal.Zero
	if raw := notes[noteDiscountAmount]; raw != "" {
		discount, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", noteDiscountAmount, err)
		}
	}

	products := notes[noteProducts]
	for i := 1; ; i++ {
		part, ok := notes[productsKey(i)]
		if !ok {
			break
		}
		products += part
	}
	var items []LineItem
	if err := json.Unmarshal([]byte(products), &items); err != nil {
		return nil, fmt.Errorf("note %s: %w", noteProducts, err)
	}

	return &CheckoutNotes{
		UserID:           userID,
		AddressID:        addressID,
		BillingAddressID: billingID,
		CouponCode:       notes[noteCouponCode],
		DiscountAmount:   discount,
		HoldID:           notes[noteHoldID],
		Items:            items,
	}, nil
}
