// Package observability wires optional OpenTelemetry export for pipeline
// operations.
//
// TracerComponent and MeterComponent install OTLP/HTTP providers and are
// registered with the bootstrap app only when enabled in config. Each
// pipeline step is wrapped in an Operation:
//
//	ctx, op := observability.StartOperation(ctx, observability.SpanStart, name, metrics)
//	err := client.Start(ctx, name)
//	return op.End(ctx, err)
//
// Without an installed provider spans are no-ops, and a nil *Metrics
// records nothing.
package observability
