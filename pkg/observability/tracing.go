// Package observability provides OpenTelemetry tracing for geovec operations.
//
// Spans are created through the global tracer provider, which is a no-op
// until Init installs an exporting provider:
//
//	ctx, span := observability.StartSpan(ctx, "datastore.Query",
//		attribute.String("geovec.type_name", typeName))
//	defer func() { observability.EndSpan(span, err) }()
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/geovec"

// Tracer returns the geovec tracer of the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span named operation carrying attrs.
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, operation, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, sets the span status and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Traced runs fn inside a span named operation.
func Traced(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := StartSpan(ctx, operation, attrs...)
	err := fn(ctx)
	EndSpan(span, err)
	return err
}

// InjectContext writes the trace context of ctx into carrier.
func InjectContext(ctx context.Context, carrier map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// ExtractContext returns ctx carrying the trace context found in carrier.
func ExtractContext(ctx context.Context, carrier map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}
