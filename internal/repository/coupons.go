package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
)

const couponColumns = `code, discount_percentage, expiration_date, user_id, is_active, created_at`

func (r *Repository) queryCoupon(ctx context.Context, query string, args ...any) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.Code,
		&c.DiscountPercentage,
		&c.ExpirationDate,
		&c.UserID,
		&c.IsActive,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query coupon: %w", err)
	}
	return &c, nil
}

// GetActiveCoupon returns the active coupon of a user, expired or not.
func (r *Repository) GetActiveCoupon(ctx context.Context, userID uuid.UUID) (*domain.Coupon, error) {
	return r.queryCoupon(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 AND is_active`,
		userID)
}

func (r *Repository) FindActiveCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.Coupon, error) {
	return r.queryCoupon(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1 AND user_id = $2 AND is_active`,
		code, userID)
}

// ReplaceCoupon deletes every coupon of the user and stores c.
func (r *Repository) ReplaceCoupon(ctx context.Context, c *domain.Coupon) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM coupons WHERE user_id = $1`, c.UserID); err != nil {
			return fmt.Errorf("delete previous coupons: %w", err)
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO coupons (code, discount_percentage, expiration_date, user_id, is_active)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			c.Code, c.DiscountPercentage, c.ExpirationDate, c.UserID, c.IsActive,
		).Scan(&c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert coupon: %w", err)
		}
		return nil
	})
}

// DeactivateCoupon marks a coupon used. Deactivating an inactive or missing
// coupon is a no-op.
func (r *Repository) DeactivateCoupon(ctx context.Context, userID uuid.UUID, code string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET is_active = FALSE WHERE code = $1 AND user_id = $2 AND is_active`,
		code, userID)
	if err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}
	return nil
}
