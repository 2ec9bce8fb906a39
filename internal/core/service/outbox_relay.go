package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/observability"
	"github.com/rl1809/storefront/internal/port"
)

const maxRelayBackoff = 30 * time.Second

// OutboxRelay delivers staged OrderPlaced events. An event is marked only
// after the broker accepted it, so a crash in between re-sends it.
type OutboxRelay struct {
	outbox    port.OutboxRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	metrics   *observability.OrderMetrics
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

func NewOutboxRelay(outbox port.OutboxRepository, publisher port.EventPublisher, logger *zap.Logger, metrics *observability.OrderMetrics, batchSize int, interval time.Duration) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled. Failed rounds back off exponentially.
func (r *OutboxRelay) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.interval
	bo.MaxInterval = maxRelayBackoff
	bo.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	r.logger.Info("outbox relay started", zap.Int("batch_size", r.batchSize), zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-timer.C:
		}

		n, err := r.RelayOnce(ctx)
		wait := r.interval
		switch {
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			wait = bo.NextBackOff()
			r.logger.Warn("outbox relay round failed",
				zap.Int("published", n),
				zap.Duration("retry_in", wait),
				zap.Error(err))
		case n == r.batchSize:
			bo.Reset()
			wait = 0
		default:
			bo.Reset()
		}
		timer.Reset(wait)
	}
}

// RelayOnce publishes one batch of pending events in creation order and
// stops at the first failure. It returns how many events were delivered.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.PendingEvents(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}

	for i, ev := range events {
		var event domain.OrderPlacedEvent
		if err := json.Unmarshal(ev.Payload, &event); err != nil {
			r.logger.Error("discarding undecodable outbox event", zap.String("event_id", ev.ID), zap.Error(err))
			if err := r.outbox.MarkPublished(ctx, ev.ID, r.now()); err != nil {
				return i, fmt.Errorf("mark event %s published: %w", ev.ID, err)
			}
			continue
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			r.metrics.RecordPublish(ctx, "failed")
			return i, fmt.Errorf("%w: event %s: %w", ErrPublish, ev.ID, err)
		}
		r.metrics.RecordPublish(ctx, "published")

		if err := r.outbox.MarkPublished(ctx, ev.ID, r.now()); err != nil {
			return i, fmt.Errorf("mark event %s published: %w", ev.ID, err)
		}
	}

	return len(events), nil
}
