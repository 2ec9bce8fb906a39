package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/rl1809/storefront"

// Placement outcomes recorded by OrderMetrics.
const (
	OutcomeAccepted            = "accepted"
	OutcomeInvalid             = "invalid_request"
	OutcomeOutOfStock          = "out_of_stock"
	OutcomeUpstreamUnavailable = "upstream_unavailable"
	OutcomeStoreError          = "store_error"
	OutcomeDuplicate           = "duplicate"
	OutcomeCancelled           = "cancelled"

	OutcomeIdempotencyUnavailable = "idempotency_unavailable"
)

// SetupMetrics installs a global meter provider backed by a Prometheus
// exporter and returns the scrape handler.
func SetupMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

type OrderMetrics struct {
	placements    metric.Int64Counter
	placementTime metric.Float64Histogram
	lookups       metric.Int64Counter
	lookupTime    metric.Float64Histogram
	publishes     metric.Int64Counter
	reservations  metric.Int64Counter
}

func NewOrderMetrics(provider metric.MeterProvider) (*OrderMetrics, error) {
	meter := provider.Meter(meterName)

	placements, err := meter.Int64Counter(
		"orders_placed_total",
		metric.WithDescription("Order placement attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	placementTime, err := meter.Float64Histogram(
		"order_placement_duration_seconds",
		metric.WithDescription("End-to-end order placement duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"inventory_lookups_total",
		metric.WithDescription("Inventory availability lookups by result"),
	)
	if err != nil {
		return nil, err
	}

	lookupTime, err := meter.Float64Histogram(
		"inventory_lookup_duration_seconds",
		metric.WithDescription("Inventory availability lookup duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	publishes, err := meter.Int64Counter(
		"order_events_published_total",
		metric.WithDescription("OrderPlaced event deliveries by result"),
	)
	if err != nil {
		return nil, err
	}

	reservations, err := meter.Int64Counter(
		"stock_reservations_total",
		metric.WithDescription("Stock reservation attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{
		placements:    placements,
		placementTime: placementTime,
		lookups:       lookups,
		lookupTime:    lookupTime,
		publishes:     publishes,
		reservations:  reservations,
	}, nil
}

func (m *OrderMetrics) RecordPlacement(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.placements.Add(ctx, 1, attrs)
	m.placementTime.Record(ctx, duration.Seconds(), attrs)
}

func (m *OrderMetrics) RecordLookup(ctx context.Context, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.lookups.Add(ctx, 1, attrs)
	m.lookupTime.Record(ctx, duration.Seconds(), attrs)
}

// RecordPublish counts one event delivery; result is "published", "failed" or "dropped".
func (m *OrderMetrics) RecordPublish(ctx context.Context, result string) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *OrderMetrics) RecordReservation(ctx context.Context, result string) {
	m.reservations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// NopOrderMetrics returns metrics that record nothing.
func NopOrderMetrics() *OrderMetrics {
	m, _ := NewOrderMetrics(noop.NewMeterProvider())
	return m
}
