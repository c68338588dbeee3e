package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
)

const userColumns = `id, name, email, role, is_verified, verification_expires_at, created_at, password_hash`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var expires sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsVerified, &expires, &u.CreatedAt, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if expires.Valid {
		u.VerificationExpiresAt = &expires.Time
	}
	return &u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail matches the address case-insensitively.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email)))
}

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	hash := u.PasswordHash
	if hash == nil {
		hash = []byte{}
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, name, email, role, is_verified, verification_expires_at, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		u.ID, u.Name, u.Email, u.Role, u.IsVerified, u.VerificationExpiresAt, hash,
	).Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") || isUniqueViolation(err, "idx_users_email_lower") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// MarkUserVerified confirms a signup so the sweeper leaves it alone.
func (r *Repository) MarkUserVerified(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE, verification_expires_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteExpiredUnverified removes signups that were never verified in time.
func (r *Repository) DeleteExpiredUnverified(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE is_verified = FALSE AND verification_expires_at IS NOT NULL AND verification_expires_at < $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("delete unverified users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
