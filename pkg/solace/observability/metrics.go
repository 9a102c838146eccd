package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordGraphRun records a graph run completion.
	RecordGraphRun(ctx context.Context, success bool, duration time.Duration)

	// RecordTurn records a finished turn. outcome is "ok" or an error kind.
	RecordTurn(ctx context.Context, kind, outcome string, duration time.Duration)

	// RecordBreakerTransition records a circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, name, from, to string)

	// RecordSoftFailure records a soft dependency failure.
	RecordSoftFailure(ctx context.Context, dependency string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions     metric.Int64Counter
	nodeLatency        metric.Float64Histogram
	nodeErrors         metric.Int64Counter
	graphRuns          metric.Int64Counter
	graphLatency       metric.Float64Histogram
	turns              metric.Int64Counter
	turnLatency        metric.Float64Histogram
	breakerTransitions metric.Int64Counter
	softFailures       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("solace")

	m := &otelMetrics{}
	var err error

	if m.nodeExecutions, err = meter.Int64Counter("solace.node.executions",
		metric.WithDescription("Number of node executions"),
	); err != nil {
		return nil, err
	}

	if m.nodeLatency, err = meter.Float64Histogram("solace.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.nodeErrors, err = meter.Int64Counter("solace.node.errors",
		metric.WithDescription("Number of node execution errors"),
	); err != nil {
		return nil, err
	}

	if m.graphRuns, err = meter.Int64Counter("solace.graph.runs",
		metric.WithDescription("Number of graph runs"),
	); err != nil {
		return nil, err
	}

	if m.graphLatency, err = meter.Float64Histogram("solace.graph.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.turns, err = meter.Int64Counter("solace.turns",
		metric.WithDescription("Number of turns by kind and outcome"),
	); err != nil {
		return nil, err
	}

	if m.turnLatency, err = meter.Float64Histogram("solace.turn.latency_ms",
		metric.WithDescription("Turn latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.breakerTransitions, err = meter.Int64Counter("solace.breaker.transitions",
		metric.WithDescription("Number of circuit breaker state changes"),
	); err != nil {
		return nil, err
	}

	if m.softFailures, err = meter.Int64Counter("solace.soft_failures",
		metric.WithDescription("Number of soft dependency failures"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, durationMs(duration), attrs)

	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordGraphRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.graphRuns.Add(ctx, 1, attrs)
	m.graphLatency.Record(ctx, durationMs(duration), attrs)
}

func (m *otelMetrics) RecordTurn(ctx context.Context, kind, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.turns.Add(ctx, 1, attrs)
	m.turnLatency.Record(ctx, durationMs(duration), attrs)
}

func (m *otelMetrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	m.breakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *otelMetrics) RecordSoftFailure(ctx context.Context, dependency string) {
	m.softFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("dependency", dependency)))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
