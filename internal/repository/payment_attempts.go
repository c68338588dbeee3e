package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
)

// RecordAttempt stores a payment attempt. A second reconcile attempt for the
// same gateway order updates the open one instead of adding a row.
func (r *Repository) RecordAttempt(ctx context.Context, a *domain.PaymentAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `INSERT INTO payment_attempts (id, gateway_order_id, gateway_payment_id, user_id, status, gateway_status, reason)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (gateway_order_id) WHERE status = 'reconcile'
	          DO UPDATE SET reason = EXCLUDED.reason, gateway_status = EXCLUDED.gateway_status, updated_at = NOW()
	          RETURNING id, attempts, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.GatewayOrderID, a.GatewayPaymentID, a.UserID, a.Status, a.GatewayStatus, a.Reason,
	).Scan(&a.ID, &a.Attempts, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment attempt: %w", err)
	}
	return nil
}

func (r *Repository) ListReconcilable(ctx context.Context, maxAttempts, limit int) ([]*domain.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, gateway_order_id, gateway_payment_id, user_id, status, gateway_status, reason, attempts, created_at, updated_at
		 FROM payment_attempts
		 WHERE status = 'reconcile' AND attempts < $1
		 ORDER BY updated_at
		 LIMIT $2`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query payment attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		var a domain.PaymentAttempt
		if err := rows.Scan(&a.ID, &a.GatewayOrderID, &a.GatewayPaymentID, &a.UserID, &a.Status,
			&a.GatewayStatus, &a.Reason, &a.Attempts, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return attempts, nil
}

// MarkAttempt counts one more processing round and stores its outcome.
func (r *Repository) MarkAttempt(ctx context.Context, id uuid.UUID, status domain.AttemptStatus, reason string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_attempts SET status = $1, reason = $2, attempts = attempts + 1, updated_at = NOW() WHERE id = $3`,
		status, reason, id)
	if err != nil {
		return fmt.Errorf("update payment attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}
