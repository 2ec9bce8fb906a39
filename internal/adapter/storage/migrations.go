package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/order/*.sql migrations/inventory/*.sql
var migrationsFS embed.FS

// Supported SQL dialects.
const (
	DialectMySQL  = goose.DialectMySQL
	DialectSQLite = goose.DialectSQLite3
)

// MigrateOrders applies the order-service schema: orders, line items and the outbox.
func MigrateOrders(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	return migrate(ctx, db, dialect, "migrations/order", "goose_order_migrations")
}

// MigrateInventory applies the inventory-service schema and its seed rows.
func MigrateInventory(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	return migrate(ctx, db, dialect, "migrations/inventory", "goose_inventory_migrations")
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir, table string) error {
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", dir, err)
	}

	store, err := database.NewStore(dialect, table)
	if err != nil {
		return fmt.Errorf("create migration store: %w", err)
	}

	provider, err := goose.NewProvider("", db, fsys, goose.WithStore(store))
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations %s: %w", dir, err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
