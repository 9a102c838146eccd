package graph

import (
	"log/slog"

	"github.com/randalmurphal/solace/pkg/solace/observability"
)

// DefaultMaxIterations bounds node executions per run.
const DefaultMaxIterations = 1000

type runConfig struct {
	maxIterations int
	graphName     string
	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
}

func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
		graphName:     "graph",
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Exceeding it returns *MaxIterationsError. Non-positive values are ignored.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithGraphName sets the name reported on run spans.
func WithGraphName(name string) RunOption {
	return func(c *runConfig) {
		c.graphName = name
	}
}

// WithObservabilityLogger logs run and node lifecycle events to logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics records node and run metrics to m. A nil recorder disables metrics.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m == nil {
			m = observability.NoopMetrics{}
		}
		c.metrics = m
	}
}

// WithTracing creates run and node spans through sm. A nil manager disables tracing.
func WithTracing(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm == nil {
			sm = observability.NoopSpanManager{}
		}
		c.spans = sm
	}
}
