package domain

import "time"

const OrderPlacedEventType = "OrderPlaced"

type OrderPlacedEvent struct {
	OrderNumber string `json:"orderNumber"`
}

// OutboxEvent is an event staged in the same transaction as the order it
// describes. PublishedAt stays nil until the relay has delivered it.
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
