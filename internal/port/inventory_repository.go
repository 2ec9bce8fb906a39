package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type InventoryRepository interface {
	// FindBySkus returns the inventory rows that exist for skus; unknown SKUs are omitted
	FindBySkus(ctx context.Context, skus []string) ([]domain.Inventory, error)

	// ListInventory returns every inventory row
	ListInventory(ctx context.Context) ([]domain.Inventory, error)

	// DecrementStock conditionally decreases stock for all items in one transaction
	DecrementStock(ctx context.Context, items []domain.StockReservationItem) error
}
