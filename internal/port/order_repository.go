package port

import (
	"context"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderRepository interface {
	// SaveOrder persists the order and all of its line items in one transaction
	SaveOrder(ctx context.Context, order domain.Order) error

	// SaveOrderWithEvent persists the order and stages event in the same transaction
	SaveOrderWithEvent(ctx context.Context, order domain.Order, event domain.OutboxEvent) error

	// GetOrder retrieves an order with its line items by order number
	GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error)
}

type OutboxRepository interface {
	// PendingEvents returns unpublished events, oldest first
	PendingEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error)

	// MarkPublished records that the event was delivered
	MarkPublished(ctx context.Context, id string, at time.Time) error
}
