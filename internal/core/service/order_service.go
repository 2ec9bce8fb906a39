package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/observability"
	"github.com/rl1809/storefront/internal/port"
)

// Notification modes.
const (
	NotifyDirect = "direct"
	NotifyOutbox = "outbox"
)

const (
	idempotencyKeyPrefix = "order:idempotency:"

	defaultLookupTimeout  = 3 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultPublishWorkers = 2
	defaultQueueSize      = 1024
)

type Option func(*OrderService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *OrderService) { s.logger = logger }
}

func WithMetrics(metrics *observability.OrderMetrics) Option {
	return func(s *OrderService) { s.metrics = metrics }
}

// WithIdempotency enables deduplication of requests that carry an idempotency key.
func WithIdempotency(repo port.IdempotencyRepository) Option {
	return func(s *OrderService) { s.idempotency = repo }
}

// WithOutbox stages OrderPlaced events in the order transaction instead of
// publishing them from the request path. An OutboxRelay must deliver them.
func WithOutbox() Option {
	return func(s *OrderService) { s.notifyMode = NotifyOutbox }
}

func WithLookupTimeout(timeout time.Duration) Option {
	return func(s *OrderService) { s.lookupTimeout = timeout }
}

func WithPublisherPool(workers, queueSize int, timeout time.Duration) Option {
	return func(s *OrderService) {
		s.workers = workers
		s.queueSize = queueSize
		s.publishTimeout = timeout
	}
}

type OrderService struct {
	inventory   port.InventoryClient
	orders      port.OrderRepository
	publisher   port.EventPublisher
	idempotency port.IdempotencyRepository
	logger      *zap.Logger
	metrics     *observability.OrderMetrics
	tracer      trace.Tracer

	notifyMode     string
	lookupTimeout  time.Duration
	publishTimeout time.Duration
	workers        int
	queueSize      int

	eventQueue chan domain.OrderPlacedEvent
	mu         sync.RWMutex
	closed     bool
	wg         sync.WaitGroup
}

func NewOrderService(inventory port.InventoryClient, orders port.OrderRepository, publisher port.EventPublisher, opts ...Option) *OrderService {
	s := &OrderService{
		inventory:      inventory,
		orders:         orders,
		publisher:      publisher,
		logger:         zap.NewNop(),
		tracer:         otel.Tracer("github.com/rl1809/storefront/internal/core/service"),
		notifyMode:     NotifyDirect,
		lookupTimeout:  defaultLookupTimeout,
		publishTimeout: defaultPublishTimeout,
		workers:        defaultPublishWorkers,
		queueSize:      defaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = observability.NopOrderMetrics()
	}

	if s.notifyMode == NotifyDirect {
		s.eventQueue = make(chan domain.OrderPlacedEvent, s.queueSize)
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.publishLoop(i)
		}
	}

	return s
}

// PlaceOrder checks stock for every SKU in req and persists the order only if
// all of them are available. It returns the generated order number.
func (s *OrderService) PlaceOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (string, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.line_items", len(req.LineItems))))
	defer span.End()

	orderNumber, outcome, err := s.placeOrder(ctx, req, idempotencyKey)
	s.metrics.RecordPlacement(ctx, outcome, time.Since(start))
	span.SetAttributes(attribute.String("order.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		if outcome != observability.OutcomeInvalid && outcome != observability.OutcomeOutOfStock {
			span.SetStatus(codes.Error, err.Error())
		}
		return "", err
	}

	span.SetAttributes(attribute.String("order.number", orderNumber))
	return orderNumber, nil
}

func (s *OrderService) placeOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (string, string, error) {
	if err := req.Validate(); err != nil {
		return "", observability.OutcomeInvalid, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if idempotencyKey != "" && s.idempotency != nil {
		key := idempotencyKeyPrefix + idempotencyKey
		ok, err := s.idempotency.SetIdempotency(ctx, key)
		if err != nil {
			return "", observability.OutcomeIdempotencyUnavailable, fmt.Errorf("%w: %w", ErrIdempotency, err)
		}
		if !ok {
			return "", observability.OutcomeDuplicate, ErrDuplicateRequest
		}

		orderNumber, outcome, err := s.checkAndCommit(ctx, req)
		if err != nil {
			// a failed attempt must not block the client's retry
			if releaseErr := s.idempotency.ReleaseIdempotency(context.WithoutCancel(ctx), key); releaseErr != nil {
				s.logger.Error("failed to release idempotency key",
					zap.String("idempotency_key", idempotencyKey),
					zap.Error(releaseErr))
			}
		}
		return orderNumber, outcome, err
	}

	return s.checkAndCommit(ctx, req)
}

func (s *OrderService) checkAndCommit(ctx context.Context, req domain.OrderRequest) (string, string, error) {
	order := domain.NewOrder(req)
	skus := order.DistinctSKUs()

	availability, err := s.lookup(ctx, skus)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Info("order placement abandoned", zap.String("order_number", order.OrderNumber), zap.Error(ctxErr))
		return "", observability.OutcomeCancelled, fmt.Errorf("order placement abandoned: %w", ctxErr)
	}
	if err != nil {
		s.logger.Error("inventory lookup failed",
			zap.String("order_number", order.OrderNumber),
			zap.Strings("skus", skus),
			zap.Error(err))
		return "", observability.OutcomeUpstreamUnavailable, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	if !AllInStock(skus, availability) {
		missing := unavailableSKUs(skus, availability)
		s.logger.Info("order rejected, products out of stock",
			zap.String("order_number", order.OrderNumber),
			zap.Strings("skus", missing))
		return "", observability.OutcomeOutOfStock, fmt.Errorf("%w: %s", ErrOutOfStock, strings.Join(missing, ", "))
	}

	event := domain.OrderPlacedEvent{OrderNumber: order.OrderNumber}

	if s.notifyMode == NotifyOutbox {
		outboxEvent, err := newOutboxEvent(order, event)
		if err != nil {
			return "", observability.OutcomeStoreError, fmt.Errorf("%w: %w", ErrStore, err)
		}
		if err := s.orders.SaveOrderWithEvent(ctx, order, outboxEvent); err != nil {
			s.logger.Error("failed to save order", zap.String("order_number", order.OrderNumber), zap.Error(err))
			return "", observability.OutcomeStoreError, fmt.Errorf("%w: %w", ErrStore, err)
		}
	} else {
		if err := s.orders.SaveOrder(ctx, order); err != nil {
			s.logger.Error("failed to save order", zap.String("order_number", order.OrderNumber), zap.Error(err))
			return "", observability.OutcomeStoreError, fmt.Errorf("%w: %w", ErrStore, err)
		}
		s.enqueue(ctx, event)
	}

	s.logger.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.Int("line_items", len(order.LineItems)),
		zap.String("notify_mode", s.notifyMode))

	return order.OrderNumber, observability.OutcomeAccepted, nil
}

func (s *OrderService) lookup(ctx context.Context, skus []string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	start := time.Now()
	availability, err := s.inventory.Lookup(ctx, skus)
	s.metrics.RecordLookup(ctx, time.Since(start), err == nil)
	return availability, err
}

func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return order, nil
}

// enqueue hands the event to the publisher pool without blocking the caller.
// A full queue drops the event; the order stays placed.
func (s *OrderService) enqueue(ctx context.Context, event domain.OrderPlacedEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Error("order service closed, dropping order placed event", zap.String("order_number", event.OrderNumber))
		s.metrics.RecordPublish(ctx, "dropped")
		return
	}

	select {
	case s.eventQueue <- event:
	default:
		s.logger.Error("notification queue full, dropping order placed event", zap.String("order_number", event.OrderNumber))
		s.metrics.RecordPublish(ctx, "dropped")
	}
}

func (s *OrderService) publishLoop(id int) {
	defer s.wg.Done()

	for event := range s.eventQueue {
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)

		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish order placed event",
				zap.Int("worker", id),
				zap.String("order_number", event.OrderNumber),
				zap.Error(fmt.Errorf("%w: %w", ErrPublish, err)))
			s.metrics.RecordPublish(ctx, "failed")
		} else {
			s.logger.Debug("order placed event published",
				zap.Int("worker", id),
				zap.String("order_number", event.OrderNumber))
			s.metrics.RecordPublish(ctx, "published")
		}

		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (s *OrderService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.eventQueue != nil {
		close(s.eventQueue)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func newOutboxEvent(order domain.Order, event domain.OrderPlacedEvent) (domain.OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("marshal order placed event: %w", err)
	}

	return domain.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: order.OrderNumber,
		EventType:   domain.OrderPlacedEventType,
		Payload:     payload,
		CreatedAt:   order.CreatedAt,
	}, nil
}

func unavailableSKUs(skus []string, availability map[string]bool) []string {
	var missing []string
	for _, sku := range skus {
		if !availability[sku] {
			missing = append(missing, sku)
		}
	}
	return missing
}
