package service

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

// callLog records side effects across mocks so tests can assert ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type mockInventoryClient struct {
	mu           sync.Mutex
	availability map[string]bool
	err          error
	block        bool
	calls        [][]string
	log          *callLog
}

func (m *mockInventoryClient) Lookup(ctx context.Context, skus []string) (map[string]bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), skus...))
	block := m.block
	m.mu.Unlock()
	m.log.add("lookup")

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}

	// fail closed like the real client: every requested SKU gets an answer
	out := make(map[string]bool, len(skus))
	for _, sku := range skus {
		out[sku] = m.availability[sku]
	}
	return out, nil
}

func (m *mockInventoryClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	outbox []domain.OutboxEvent
	err    error
	log    *callLog
}

func newMockOrderRepo(log *callLog) *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]domain.Order), log: log}
}

func (m *mockOrderRepo) SaveOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders[order.OrderNumber] = order
	m.log.add("save:" + order.OrderNumber)
	return nil
}

func (m *mockOrderRepo) SaveOrderWithEvent(ctx context.Context, order domain.Order, event domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders[order.OrderNumber] = order
	m.outbox = append(m.outbox, event)
	m.log.add("save:" + order.OrderNumber)
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderNumber]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &order, nil
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepo) PendingEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []domain.OutboxEvent
	for _, ev := range m.outbox {
		if ev.PublishedAt == nil && len(pending) < limit {
			pending = append(pending, ev)
		}
	}
	return pending, nil
}

func (m *mockOrderRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.outbox {
		if m.outbox[i].ID == id {
			published := at
			m.outbox[i].PublishedAt = &published
		}
	}
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.OrderPlacedEvent
	err    error
	log    *callLog
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.OrderPlacedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	m.log.add("publish:" + event.OrderNumber)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published() []domain.OrderPlacedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderPlacedEvent(nil), m.events...)
}

type mockIdempotencyRepo struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{keys: make(map[string]bool)}
}

func (m *mockIdempotencyRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotencyRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
