package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

// MySQLAdapter stores orders and their outbox events.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) SaveOrder(ctx context.Context, order domain.Order) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		return insertOrder(ctx, tx, order)
	})
}

func (m *MySQLAdapter) SaveOrderWithEvent(ctx context.Context, order domain.Order, event domain.OutboxEvent) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			event.ID, event.AggregateID, event.EventType, string(event.Payload), toMillis(event.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	var (
		order     domain.Order
		createdAt int64
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_number, created_at
		FROM orders WHERE order_number = ?`, orderNumber,
	).Scan(&order.ID, &order.OrderNumber, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	order.CreatedAt = fromMillis(createdAt)

	rows, err := m.db.QueryContext(ctx, `
		SELECT sku_code, quantity, price
		FROM order_line_items WHERE order_id = ?
		ORDER BY line_no`, order.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderLineItem
		if err := rows.Scan(&item.SkuCode, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		order.LineItems = append(order.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	return &order, nil
}

// PendingEvents returns unpublished outbox events, oldest first.
func (m *MySQLAdapter) PendingEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var (
			ev        domain.OutboxEvent
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		ev.Payload = []byte(payload)
		ev.CreatedAt = fromMillis(createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

func (m *MySQLAdapter) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE outbox_events SET published_at = ?
		WHERE id = ? AND published_at IS NULL`,
		toMillis(at), id,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func insertOrder(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, created_at)
		VALUES (?, ?, ?)`,
		order.ID, order.OrderNumber, toMillis(order.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_line_items (order_id, line_no, sku_code, quantity, price)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare line item insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range order.LineItems {
		if _, err := stmt.ExecContext(ctx, order.ID, i, item.SkuCode, item.Quantity, item.Price); err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}
	return nil
}
