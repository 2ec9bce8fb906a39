package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderPlacedEvent) error
	Close() error
}
