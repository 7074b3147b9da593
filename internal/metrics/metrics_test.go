package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestRecorderCountsTasksByStatus(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	r, err := NewRecorder(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()
	r.TaskQueued(ctx, "Sales")
	r.TaskFinished(ctx, "Sales", "done", 3*time.Millisecond)
	r.TaskFinished(ctx, "Sales", "done", time.Millisecond)
	r.TaskFinished(ctx, "Market", "failed", time.Millisecond)
	r.PricingDecision(ctx, "premium", 109.99)

	metrics := collect(t, reader)
	sum, ok := metrics["asd.tasks.processed"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2)

	hist, ok := metrics["asd.pricing.price"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestProviderServesPrometheusText(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	r, err := NewRecorder(p.Meter())
	require.NoError(t, err)
	r.TaskFinished(context.Background(), "Product", "done", time.Millisecond)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "asd_tasks_processed")
}

func TestNoopRecorderIsSafe(t *testing.T) {
	r := Noop()
	r.TaskFinished(context.Background(), "Product", "done", time.Second)
	r.PricingDecision(context.Background(), "clearance", 1)
}
