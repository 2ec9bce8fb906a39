// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Common holds settings shared by both services.
type Common struct {
	LogLevel       string        `env:"LOG_LEVEL"                   envDefault:"info"`
	MySQLDSN       string        `env:"MYSQL_DSN"                   envDefault:"root:root@tcp(localhost:3306)/storefront"`
	MySQLMaxOpen   int           `env:"MYSQL_MAX_OPEN_CONNS"        envDefault:"50"`
	MySQLMaxIdle   int           `env:"MYSQL_MAX_IDLE_CONNS"        envDefault:"25"`
	MySQLLifetime  time.Duration `env:"MYSQL_CONN_MAX_LIFETIME"     envDefault:"5m"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPoolSize  int           `env:"REDIS_POOL_SIZE"             envDefault:"100"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	HealthInterval time.Duration `env:"HEALTH_CHECK_INTERVAL"       envDefault:"10s"`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_TIMEOUT"            envDefault:"5s"`
}

type OrderService struct {
	Common

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	InventoryURL         string        `env:"INVENTORY_URL"             envDefault:"http://localhost:8082"`
	InventoryTimeout     time.Duration `env:"INVENTORY_TIMEOUT"         envDefault:"3s"`
	InventoryMaxInFlight int64         `env:"INVENTORY_MAX_IN_FLIGHT"   envDefault:"64"`

	NotifyMode     string        `env:"NOTIFY_MODE"               envDefault:"direct"`
	Broker         string        `env:"BROKER"                    envDefault:"kafka"`
	KafkaBrokers   []string      `env:"KAFKA_BROKERS"             envDefault:"localhost:9092" envSeparator:","`
	NATSURL        string        `env:"NATS_URL"                  envDefault:"nats://localhost:4222"`
	Topic          string        `env:"NOTIFICATION_TOPIC"        envDefault:"notificationTopic"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT"           envDefault:"5s"`
	PublishWorkers int           `env:"PUBLISH_WORKERS"           envDefault:"2"`
	PublishQueue   int           `env:"PUBLISH_QUEUE_SIZE"        envDefault:"1024"`

	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE"       envDefault:"100"`
	OutboxInterval  time.Duration `env:"OUTBOX_POLL_INTERVAL"    envDefault:"1s"`
}

// HTTP_ADDR defaults to the port OrderService.InventoryURL points at.
type InventoryService struct {
	Common

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8082"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50052"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadOrderService() (OrderService, error) {
	var cfg OrderService
	if err := ParseEnv(&cfg); err != nil {
		return OrderService{}, err
	}
	return cfg, cfg.Validate()
}

func LoadInventoryService() (InventoryService, error) {
	var cfg InventoryService
	if err := ParseEnv(&cfg); err != nil {
		return InventoryService{}, err
	}
	return cfg, cfg.Validate()
}

func (c Common) Validate() error {
	var errs []error
	if c.MySQLDSN == "" {
		errs = append(errs, errors.New("MYSQL_DSN is required"))
	}
	if c.ShutdownGrace <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.HealthInterval <= 0 {
		errs = append(errs, errors.New("HEALTH_CHECK_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func (c OrderService) Validate() error {
	errs := []error{c.Common.Validate()}

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.InventoryURL == "" {
		errs = append(errs, errors.New("INVENTORY_URL is required"))
	}
	// lookups must always carry a deadline
	if c.InventoryTimeout <= 0 {
		errs = append(errs, errors.New("INVENTORY_TIMEOUT must be positive"))
	}
	if c.InventoryMaxInFlight <= 0 {
		errs = append(errs, errors.New("INVENTORY_MAX_IN_FLIGHT must be positive"))
	}

	switch c.NotifyMode {
	case "direct":
		if c.PublishWorkers <= 0 || c.PublishQueue <= 0 {
			errs = append(errs, errors.New("PUBLISH_WORKERS and PUBLISH_QUEUE_SIZE must be positive"))
		}
	case "outbox":
		if c.OutboxBatchSize <= 0 || c.OutboxInterval <= 0 {
			errs = append(errs, errors.New("OUTBOX_BATCH_SIZE and OUTBOX_POLL_INTERVAL must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_MODE must be direct or outbox, got %q", c.NotifyMode))
	}

	switch c.Broker {
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required"))
		}
	case "nats":
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required"))
		}
	case "log":
	default:
		errs = append(errs, fmt.Errorf("BROKER must be kafka, nats or log, got %q", c.Broker))
	}

	if c.Topic == "" {
		errs = append(errs, errors.New("NOTIFICATION_TOPIC is required"))
	}
	if c.PublishTimeout <= 0 {
		errs = append(errs, errors.New("PUBLISH_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (c InventoryService) Validate() error {
	errs := []error{c.Common.Validate()}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	return errors.Join(errs...)
}
