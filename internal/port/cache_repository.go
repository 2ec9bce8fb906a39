package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CacheRepository interface {
	// ReserveStock atomically decreases stock for all items, returns false if any is insufficient
	ReserveStock(ctx context.Context, items []domain.StockReservationItem) (bool, error)

	// ReleaseStock restores stock (for rollback on failure)
	ReleaseStock(ctx context.Context, items []domain.StockReservationItem) error

	// SetStock overwrites the cached stock level for a SKU
	SetStock(ctx context.Context, skuCode string, quantity int) error
}

type IdempotencyRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency deletes a key so the request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}
