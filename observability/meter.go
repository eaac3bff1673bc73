package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter builds an OTLP/HTTP meter provider with a periodic reader and
// installs it globally. Shutdown flushes the last collection.
func InitMeter(ctx context.Context, cfg MetricsConfig, res Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	r, err := newResource(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Metrics holds the instruments recorded around pipeline operations.
// A nil *Metrics records nothing.
type Metrics struct {
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	pollTotal         metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	operationTotal, err := meter.Int64Counter("pipedeploy.operation.total",
		metric.WithDescription("Pipeline operations by name and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipedeploy.operation.total counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("pipedeploy.operation.duration",
		metric.WithDescription("Duration of pipeline operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipedeploy.operation.duration histogram: %w", err)
	}

	pollTotal, err := meter.Int64Counter("pipedeploy.poll.total",
		metric.WithDescription("Status polls issued while waiting for a pipeline state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipedeploy.poll.total counter: %w", err)
	}

	return &Metrics{
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		pollTotal:         pollTotal,
	}, nil
}

// NewGlobalMetrics creates the instruments on the global meter provider.
func NewGlobalMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(InstrumentationName))
}

// RecordOperation records one completed operation.
func (m *Metrics) RecordOperation(ctx context.Context, pipeline, operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String("operation", operation),
		attribute.String(AttrStatus, status),
	))
	m.operationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String("operation", operation),
	))
}

// RecordPoll counts one status poll for the awaited state.
func (m *Metrics) RecordPoll(ctx context.Context, pipeline, awaiting string) {
	if m == nil {
		return
	}
	m.pollTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String("awaiting", awaiting),
	))
}
