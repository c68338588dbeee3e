package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
)

const addressColumns = `id, user_id, full_name, phone, address_line1, address_line2, city, state, pincode,
	country, is_default, created_at, updated_at`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanAddress(s interface{ Scan(dest ...any) error }) (*domain.Address, error) {
	var a domain.Address
	err := s.Scan(
		&a.ID,
		&a.UserID,
		&a.FullName,
		&a.Phone,
		&a.AddressLine1,
		&a.AddressLine2,
		&a.City,
		&a.State,
		&a.Pincode,
		&a.Country,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func getAddress(ctx context.Context, q queryer, userID, id uuid.UUID, forUpdate bool) (*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	a, err := scanAddress(q.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return a, nil
}

// ListAddresses returns the default address first, the rest oldest first.
func (r *Repository) ListAddresses(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]*domain.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return addresses, nil
}

func (r *Repository) GetAddress(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	return getAddress(ctx, r.db, userID, id, false)
}

// lockUserAddresses serialises address book changes of one user.
func lockUserAddresses(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func clearDefault(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default`,
		userID)
	if err != nil {
		return fmt.Errorf("clear default address: %w", err)
	}
	return nil
}

// CreateAddress inserts a. The first address of a user always becomes the default,
// a new default unsets the previous one.
func (r *Repository) CreateAddress(ctx context.Context, a *domain.Address) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockUserAddresses(ctx, tx, a.UserID); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM addresses WHERE user_id = $1`, a.UserID).Scan(&count); err != nil {
			return fmt.Errorf("count addresses: %w", err)
		}
		if count == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if err := clearDefault(ctx, tx, a.UserID); err != nil {
				return err
			}
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO addresses (id, user_id, full_name, phone, address_line1, address_line2, city, state,
			     pincode, country, is_default)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING created_at, updated_at`,
			a.ID, a.UserID, a.FullName, a.Phone, a.AddressLine1, a.AddressLine2, a.City, a.State,
			a.Pincode, a.Country, a.IsDefault,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		return nil
	})
}

// UpdateAddress stores the fields of a. An address that becomes default unsets
// the previous default; the current default cannot be unset here.
func (r *Repository) UpdateAddress(ctx context.Context, a *domain.Address) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockUserAddresses(ctx, tx, a.UserID); err != nil {
			return err
		}

		current, err := getAddress(ctx, tx, a.UserID, a.ID, true)
		if err != nil {
			return err
		}
		if current.IsDefault {
			a.IsDefault = true
		}
		if a.IsDefault && !current.IsDefault {
			if err := clearDefault(ctx, tx, a.UserID); err != nil {
				return err
			}
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE addresses
			 SET full_name = $1, phone = $2, address_line1 = $3, address_line2 = $4, city = $5, state = $6,
			     pincode = $7, country = $8, is_default = $9, updated_at = NOW()
			 WHERE id = $10 AND user_id = $11
			 RETURNING updated_at`,
			a.FullName, a.Phone, a.AddressLine1, a.AddressLine2, a.City, a.State,
			a.Pincode, a.Country, a.IsDefault, a.ID, a.UserID,
		).Scan(&a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		return nil
	})
}

// DeleteAddress removes an address. Deleting the default promotes the oldest
// remaining address.
func (r *Repository) DeleteAddress(ctx context.Context, userID, id uuid.UUID) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockUserAddresses(ctx, tx, userID); err != nil {
			return err
		}

		current, err := getAddress(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
			return fmt.Errorf("delete address: %w", err)
		}

		if !current.IsDefault {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE addresses SET is_default = TRUE, updated_at = NOW()
			 WHERE id = (SELECT id FROM addresses WHERE user_id = $1 ORDER BY created_at, id LIMIT 1)`,
			userID)
		if err != nil {
			return fmt.Errorf("promote default address: %w", err)
		}
		return nil
	})
}

func (r *Repository) SetDefaultAddress(ctx context.Context, userID, id uuid.UUID) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockUserAddresses(ctx, tx, userID); err != nil {
			return err
		}

		current, err := getAddress(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		if current.IsDefault {
			return nil
		}

		if err := clearDefault(ctx, tx, userID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE addresses SET is_default = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
			id, userID)
		if err != nil {
			return fmt.Errorf("set default address: %w", err)
		}
		return nil
	})
}
