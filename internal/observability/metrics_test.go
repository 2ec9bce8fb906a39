package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterValue(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.Emit() == value {
			return dp.Value
		}
	}
	return 0
}

func TestOrderMetrics_RecordPlacement(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewOrderMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPlacement(ctx, OutcomeAccepted, 10*time.Millisecond)
	m.RecordPlacement(ctx, OutcomeAccepted, 20*time.Millisecond)
	m.RecordPlacement(ctx, OutcomeOutOfStock, 5*time.Millisecond)
	m.RecordPublish(ctx, "dropped")

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), counterValue(t, metrics["orders_placed_total"], "outcome", OutcomeAccepted))
	assert.Equal(t, int64(1), counterValue(t, metrics["orders_placed_total"], "outcome", OutcomeOutOfStock))
	assert.Equal(t, int64(1), counterValue(t, metrics["order_events_published_total"], "result", "dropped"))
	assert.Contains(t, metrics, "order_placement_duration_seconds")
}

func TestOrderMetrics_RecordLookup(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewOrderMetrics(provider)
	require.NoError(t, err)

	m.RecordLookup(context.Background(), time.Millisecond, false)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(t, metrics["inventory_lookups_total"], "success", "false"))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("order-service", "debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("order-service", "loud")
	assert.Error(t, err)
}
