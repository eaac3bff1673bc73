package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer and meter used by pipedeploy.
const InstrumentationName = "github.com/kbukum/pipedeploy"

// Resource describes the process emitting telemetry.
type Resource struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// InitTracer builds an OTLP/HTTP tracer provider and installs it globally.
// Nothing is sent until the first batch is exported.
func InitTracer(ctx context.Context, cfg TracingConfig, res Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	r, err := newResource(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// newResource combines the SDK and OTEL_RESOURCE_ATTRIBUTES detectors with
// the service attributes. The service attributes carry no schema URL, so
// they merge with whatever schema the SDK detectors report.
func newResource(ctx context.Context, res Resource) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(res.ServiceName),
			semconv.ServiceVersion(res.ServiceVersion),
			attribute.String("environment", res.Environment),
		),
	)
}

// StartSpan starts a span on the global provider. With no provider
// installed the span is a no-op.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, opts...)
}

// Span names.
const (
	SpanDeploy          = "pipeline.deploy"
	SpanReadSources     = "pipeline.read_sources"
	SpanCreateOrReplace = "pipeline.create_or_replace"
	SpanStart           = "pipeline.start"
	SpanStop            = "pipeline.stop"
	SpanDelete          = "pipeline.delete"
	SpanStatus          = "pipeline.status"
)

// Attribute keys.
const (
	AttrPipeline  = "pipeline.name"
	AttrEndpoint  = "pipeline.endpoint"
	AttrRequestID = "request.id"
	AttrStatus    = "status"
	AttrErrorCode = "error.code"
)
