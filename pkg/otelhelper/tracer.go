// Package otelhelper provides distributed tracing functionality for run
// monitoring.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to run and step spans.
const (
	RunIDKey      = "operand.run.id"
	StepIDKey     = "operand.step.id"
	ActionTypeKey = "operand.action.type"
)

const tracerName = "operand"

// Setup installs a global OTLP/HTTP tracer provider for the process. The
// exporter endpoint comes from the standard OTEL_EXPORTER_OTLP_* variables.
// The returned function flushes and shuts the provider down.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp.Shutdown, nil
}

// StartRunSpan opens a span around one poll cycle of a run, using the
// globally registered tracer provider. With no provider configured this is a
// no-op span.
//
// nolint:spancheck // caller owns the span
func StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run.process",
		trace.WithAttributes(attribute.String(RunIDKey, runID)))
}

// StartStepSpan opens a span around one step execution.
//
// nolint:spancheck // caller owns the span
func StartStepSpan(ctx context.Context, runID, stepID, actionType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "step.execute",
		trace.WithAttributes(
			attribute.String(RunIDKey, runID),
			attribute.String(StepIDKey, stepID),
			attribute.String(ActionTypeKey, actionType),
		))
}
