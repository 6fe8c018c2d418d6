package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestRecorders(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := newMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordHTTPRequest(ctx, "GET", "/api/post", 200, 15*time.Millisecond)
	m.RecordPostOperation(ctx, "create", 201)
	m.RecordPostOperation(ctx, "create", 201)
	m.RecordSessionLookup(ctx, "miss")
	m.IncrementConnections(ctx)
	m.IncrementConnections(ctx)
	m.DecrementConnections(ctx)

	data := collect(t, reader)

	ops, ok := data["posts_operations_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, ops.DataPoints, 1)
	assert.Equal(t, int64(2), ops.DataPoints[0].Value)

	conns, ok := data["posts_websocket_connections"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, conns.DataPoints, 1)
	assert.Equal(t, int64(1), conns.DataPoints[0].Value)

	assert.Contains(t, data, "posts_http_requests_total")
	assert.Contains(t, data, "posts_http_duration_seconds")
	assert.Contains(t, data, "posts_session_lookups_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
		m.RecordPostOperation(ctx, "list", 200)
		m.RecordSessionLookup(ctx, "hit")
		m.IncrementConnections(ctx)
		m.DecrementConnections(ctx)
	})
}
