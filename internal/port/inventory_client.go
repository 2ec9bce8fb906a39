package port

import "context"

type InventoryClient interface {
	// Lookup returns availability for every requested SKU. SKUs the inventory
	// service does not report are mapped to false.
	Lookup(ctx context.Context, skus []string) (map[string]bool, error)
}
