// Package messaging publishes OrderPlaced events to a message broker.
package messaging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Supported brokers.
const (
	BrokerKafka = "kafka"
	BrokerNATS  = "nats"
	BrokerLog   = "log"
)

const eventTypeHeader = "event_type"

type Config struct {
	Broker       string
	KafkaBrokers []string
	NATSURL      string
	Topic        string
	WriteTimeout time.Duration
}

// NewPublisher builds the publisher for cfg.Broker.
func NewPublisher(cfg Config, logger *zap.Logger) (port.EventPublisher, error) {
	switch cfg.Broker {
	case BrokerKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic, cfg.WriteTimeout, logger), nil
	case BrokerNATS:
		return NewNATSPublisher(cfg.NATSURL, cfg.Topic, logger)
	case BrokerLog:
		return NewLogPublisher(cfg.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	topic  string
	logger *zap.Logger
}

func NewLogPublisher(topic string, logger *zap.Logger) *LogPublisher {
	return &LogPublisher{topic: topic, logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.OrderPlacedEvent) error {
	p.logger.Info("order placed event",
		zap.String("topic", p.topic),
		zap.String(eventTypeHeader, domain.OrderPlacedEventType),
		zap.String("order_number", event.OrderNumber))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
