package observability

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/pipedeploy/component"
)

// TracerComponent owns the tracer provider lifecycle. Stop flushes spans.
type TracerComponent struct {
	cfg      TracingConfig
	resource Resource
	tp       *sdktrace.TracerProvider
}

var _ component.Component = (*TracerComponent)(nil)
var _ component.Describable = (*TracerComponent)(nil)

// NewTracerComponent creates a tracer component.
func NewTracerComponent(cfg TracingConfig, res Resource) *TracerComponent {
	return &TracerComponent{cfg: cfg, resource: res}
}

func (c *TracerComponent) Name() string { return "tracer" }

func (c *TracerComponent) Start(ctx context.Context) error {
	tp, err := InitTracer(ctx, c.cfg, c.resource)
	if err != nil {
		return err
	}
	c.tp = tp
	return nil
}

func (c *TracerComponent) Stop(ctx context.Context) error {
	if c.tp == nil {
		return nil
	}
	return c.tp.Shutdown(ctx)
}

func (c *TracerComponent) Health(_ context.Context) component.Health {
	if c.tp == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *TracerComponent) Describe() component.Description {
	return component.Description{Name: c.Name(), Type: "tracer", Details: c.cfg.Endpoint}
}

// MeterComponent owns the meter provider lifecycle and the pipeline
// instruments. Stop flushes the last collection.
type MeterComponent struct {
	cfg      MetricsConfig
	resource Resource
	mp       *sdkmetric.MeterProvider
	metrics  *Metrics
}

var _ component.Component = (*MeterComponent)(nil)
var _ component.Describable = (*MeterComponent)(nil)

// NewMeterComponent creates a meter component.
func NewMeterComponent(cfg MetricsConfig, res Resource) *MeterComponent {
	return &MeterComponent{cfg: cfg, resource: res}
}

func (c *MeterComponent) Name() string { return "meter" }

func (c *MeterComponent) Start(ctx context.Context) error {
	mp, err := InitMeter(ctx, c.cfg, c.resource)
	if err != nil {
		return err
	}
	m, err := NewMetrics(mp.Meter(InstrumentationName))
	if err != nil {
		_ = mp.Shutdown(ctx)
		return err
	}
	c.mp, c.metrics = mp, m
	return nil
}

func (c *MeterComponent) Stop(ctx context.Context) error {
	if c.mp == nil {
		return nil
	}
	return c.mp.Shutdown(ctx)
}

func (c *MeterComponent) Health(_ context.Context) component.Health {
	if c.mp == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *MeterComponent) Describe() component.Description {
	return component.Description{Name: c.Name(), Type: "meter", Details: c.cfg.Endpoint}
}

// Metrics returns the instruments, or nil before Start.
func (c *MeterComponent) Metrics() *Metrics {
	return c.metrics
}
