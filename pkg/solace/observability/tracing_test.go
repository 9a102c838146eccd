package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("solace")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("solace")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down tracer provider: %v", err)
		}
	})

	return exporter
}

func spanAttr(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestStartRunSpan(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartRunSpan(context.Background(), "turn", "run-123")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "solace.run", spans[0].Name)
	assert.Equal(t, "turn", spanAttr(spans[0].Attributes, "graph.name"))
	assert.Equal(t, "run-123", spanAttr(spans[0].Attributes, "run.id"))
}

func TestNodeSpanIsChildOfRunSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, run := sm.StartRunSpan(context.Background(), "turn", "run-1")
	_, node := sm.StartNodeSpan(ctx, "context")
	sm.EndSpanWithError(node, nil)
	sm.EndSpanWithError(run, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	nodeSpan, runSpan := spans[0], spans[1]
	assert.Equal(t, "solace.node.context", nodeSpan.Name)
	assert.Equal(t, runSpan.SpanContext.SpanID(), nodeSpan.Parent.SpanID())
	assert.Equal(t, codes.Ok, nodeSpan.Status.Code)
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartNodeSpan(context.Background(), "persist")
	EndSpanWithError(span, errors.New("store unavailable"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "store unavailable", spans[0].Status.Description)
	require.NotEmpty(t, spans[0].Events)

	assert.NotPanics(t, func() { EndSpanWithError(nil, nil) })
}

func TestAddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)

	ctx, span := StartNodeSpan(context.Background(), "context")
	AddSpanEvent(ctx, "memory.injected", attribute.Int("facts", 2))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "memory.injected", spans[0].Events[0].Name)

	assert.NotPanics(t, func() {
		AddSpanEvent(context.Background(), "no span")
	})
}
