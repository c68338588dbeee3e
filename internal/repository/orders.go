package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/redclaw/internal/domain"
)

const orderColumns = `id, user_id, items, total_amount, discount_amount, currency, coupon_code,
	shipping_address, billing_address, status, gateway_order_id, gateway_payment_id, created_at, updated_at`

func (r *Repository) CreateOrderWithEvent(ctx context.Context, order *domain.Order, event *OutboxEvent) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal billing address: %w", err)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO orders (id, user_id, items, total_amount, discount_amount, currency, coupon_code,
		              shipping_address, billing_address, status, gateway_order_id, gateway_payment_id)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		          RETURNING created_at, updated_at`

		insertErr := tx.QueryRowContext(ctx, query,
			order.ID,
			order.UserID,
			itemsJSON,
			order.TotalAmount,
			order.DiscountAmount,
			order.Currency,
			order.CouponCode,
			shippingJSON,
			billingJSON,
			order.Status,
			order.GatewayOrderID,
			order.GatewayPaymentID,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if insertErr != nil {
			if isUniqueViolation(insertErr, "uq_orders_gateway_order") {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("insert order: %w", insertErr)
		}

		if event == nil {
			return nil
		}
		_, outboxErr := tx.ExecContext(ctx,
			`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
			event.AggregateId, event.EventType, event.Payload)
		if outboxErr != nil {
			return fmt.Errorf("insert outbox event: %w", outboxErr)
		}
		return nil
	})
}

func scanOrder(s interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON, shippingJSON, billingJSON []byte

	err := s.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&order.TotalAmount,
		&order.DiscountAmount,
		&order.Currency,
		&order.CouponCode,
		&shippingJSON,
		&billingJSON,
		&order.Status,
		&order.GatewayOrderID,
		&order.GatewayPaymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billingJSON, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	return &order, nil
}

func (r *Repository) getOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, "id = $1", id)
}

func (r *Repository) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return r.getOrder(ctx, "gateway_order_id = $1", gatewayOrderID)
}

func (r *Repository) listOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *Repository) ListOrdersByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE user_id = $1 AND created_at >= $2
	          ORDER BY created_at DESC`
	return r.listOrders(ctx, query, userID, since)
}

func (r *Repository) ListOrders(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          ORDER BY created_at DESC
	          LIMIT $1 OFFSET $2`
	return r.listOrders(ctx, query, limit, offset)
}

// UpdateOrderStatus moves an order from one status to another. It fails with
// ErrStatusChanged when the stored status is no longer from.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrStatusChanged
	}
	return nil
}
