package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/pipedeploy/errors"
)

// Operation ties a span and the operation metrics to one pipeline step.
type Operation struct {
	name     string
	pipeline string
	start    time.Time
	span     trace.Span
	metrics  *Metrics
}

// StartOperation opens a span named name for the given pipeline.
// metrics may be nil.
func StartOperation(ctx context.Context, name, pipeline string, metrics *Metrics, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(
		append([]attribute.KeyValue{attribute.String(AttrPipeline, pipeline)}, attrs...)...,
	))
	return ctx, &Operation{
		name:     name,
		pipeline: pipeline,
		start:    time.Now(),
		span:     span,
		metrics:  metrics,
	}
}

// End closes the span and records the outcome. It returns err unchanged
// so callers can write `return op.End(ctx, err)`.
func (o *Operation) End(ctx context.Context, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		if appErr, ok := errors.AsAppError(err); ok {
			o.span.SetAttributes(attribute.String(AttrErrorCode, string(appErr.Code)))
		}
	}
	o.span.SetAttributes(attribute.String(AttrStatus, status))
	o.span.End()

	o.metrics.RecordOperation(ctx, o.pipeline, o.name, status, time.Since(o.start))
	return err
}
