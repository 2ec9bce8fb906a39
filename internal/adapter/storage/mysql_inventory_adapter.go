package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type MySQLInventoryAdapter struct {
	db *sql.DB
}

func NewMySQLInventoryAdapter(db *sql.DB) *MySQLInventoryAdapter {
	return &MySQLInventoryAdapter{db: db}
}

func (m *MySQLInventoryAdapter) FindBySkus(ctx context.Context, skus []string) ([]domain.Inventory, error) {
	if len(skus) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(skus)), ",")
	args := make([]any, len(skus))
	for i, sku := range skus {
		args[i] = sku
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT sku_code, quantity
		FROM inventory WHERE sku_code IN (`+placeholders+`)
		ORDER BY sku_code`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return scanInventory(rows)
}

func (m *MySQLInventoryAdapter) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT sku_code, quantity FROM inventory ORDER BY sku_code`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return scanInventory(rows)
}

// DecrementStock applies every decrement or none. A row without enough stock
// fails the whole reservation with domain.ErrStockConflict.
func (m *MySQLInventoryAdapter) DecrementStock(ctx context.Context, items []domain.StockReservationItem) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := toMillis(time.Now())
	for _, item := range items {
		result, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity - ?, updated_at = ?
			WHERE sku_code = ? AND quantity >= ?`,
			item.Quantity, now, item.SkuCode, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("update inventory %s: %w", item.SkuCode, err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("%w: %s", domain.ErrStockConflict, item.SkuCode)
		}
	}

	return tx.Commit()
}

func scanInventory(rows *sql.Rows) ([]domain.Inventory, error) {
	defer rows.Close()

	var result []domain.Inventory
	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(&inv.SkuCode, &inv.Quantity); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	return result, nil
}
