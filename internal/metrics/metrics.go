// Package metrics exposes task and pricing instruments through OpenTelemetry,
// exported in Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "asd_commerce"

// Provider owns a meter provider wired to a private Prometheus registry.
type Provider struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

func NewProvider() (*Provider, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	return &Provider{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		registry: registry,
	}, nil
}

func (p *Provider) Meter() metric.Meter {
	return p.provider.Meter(meterName)
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

type Recorder struct {
	tasks    metric.Int64Counter
	duration metric.Float64Histogram
	pricing  metric.Float64Histogram
	queued   metric.Int64Counter
}

// Noop returns a recorder that discards everything.
func Noop() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider().Meter(meterName))
	return r
}

func NewRecorder(meter metric.Meter) (*Recorder, error) {
	tasks, err := meter.Int64Counter(
		"asd.tasks.processed",
		metric.WithDescription("Tasks drained from the queue by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create task counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"asd.task.duration",
		metric.WithDescription("Time an agent spent on a task"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create task duration histogram: %w", err)
	}
	pricing, err := meter.Float64Histogram(
		"asd.pricing.price",
		metric.WithDescription("Prices chosen by autonomous pricing decisions"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pricing histogram: %w", err)
	}
	queued, err := meter.Int64Counter(
		"asd.tasks.queued",
		metric.WithDescription("Tasks added to the queue"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create queued counter: %w", err)
	}
	return &Recorder{tasks: tasks, duration: duration, pricing: pricing, queued: queued}, nil
}

func (r *Recorder) TaskQueued(ctx context.Context, agentType string) {
	r.queued.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agentType)))
}

func (r *Recorder) TaskFinished(ctx context.Context, agentType, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("agent", agentType),
		attribute.String("status", status),
	)
	r.tasks.Add(ctx, 1, attrs)
	r.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

func (r *Recorder) PricingDecision(ctx context.Context, strategy string, price float64) {
	r.pricing.Record(ctx, price, metric.WithAttributes(attribute.String("strategy", strategy)))
}
