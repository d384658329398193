package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestSpanStatus(t *testing.T) {
	sr := recordSpans(t)

	require.NoError(t, Traced(context.Background(), "ok", func(context.Context) error { return nil },
		attribute.String("geovec.type_name", "roads")))
	failure := errors.New("boom")
	assert.ErrorIs(t, Traced(context.Background(), "fails", func(context.Context) error { return failure }), failure)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ok", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("geovec.type_name", "roads"))
	assert.Equal(t, "fails", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestNestedSpansShareTrace(t *testing.T) {
	sr := recordSpans(t)

	ctx, parent := StartSpan(context.Background(), "parent")
	_, child := StartSpan(ctx, "child")
	EndSpan(child, nil)
	EndSpan(parent, nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestStdoutProviderExportsJSON(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Enabled = true
	tp, err := NewTracerProvider(config, &buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "datastore.Write")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"datastore.Write"`)
	assert.Contains(t, buf.String(), "geovec")
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestValidate(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.Validate())

	config.Exporter = "zipkin"
	assert.True(t, geoerrors.IsType(config.Validate(), geoerrors.ErrorTypeConfig))

	config = DefaultConfig()
	config.SamplingRate = 2
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Enabled = true
	config.Exporter = "zipkin"
	_, err := Init(config)
	assert.Error(t, err)
}

func TestContextPropagation(t *testing.T) {
	recordSpans(t)
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	ctx, span := StartSpan(context.Background(), "export")
	defer span.End()

	carrier := map[string]string{}
	InjectContext(ctx, carrier)
	require.Contains(t, carrier, "traceparent")

	extracted := ExtractContext(context.Background(), carrier)
	_, child := StartSpan(extracted, "upload")
	defer child.End()
	assert.Equal(t, span.SpanContext().TraceID(), child.SpanContext().TraceID())
}
