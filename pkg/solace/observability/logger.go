// Package observability provides the structured logging, metrics and tracing
// used by the turn engine.
//
// Features:
//   - Structured logging via slog with a clog console handler
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/clog"
)

type loggerKey struct{}

// ParseLevel converts a level name to slog.Level.
// Accepts "debug", "info", "warn", "warning" and "error" (case-insensitive);
// anything else is treated as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a console logger writing to w at the given level.
// A nil writer logs to stderr.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(ParseLevel(level)),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
	)

	return slog.New(handler)
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in ctx, or slog.Default().
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// EnrichLogger adds turn context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "session-9", "context")
//	enriched.Info("doing work") // includes run_id, session_id, node_id
func EnrichLogger(logger *slog.Logger, runID, sessionID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
	)
}

// LogTurnStart logs the start of a turn.
func LogTurnStart(logger *slog.Logger, runID, sessionID string) {
	if logger == nil {
		return
	}
	logger.Info("turn starting",
		slog.String("run_id", runID),
		slog.String("session_id", sessionID),
	)
}

// LogTurnComplete logs successful turn completion.
func LogTurnComplete(logger *slog.Logger, runID, sessionID, kind string, sequence int64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("turn completed",
		slog.String("run_id", runID),
		slog.String("session_id", sessionID),
		slog.String("kind", kind),
		slog.Int64("sequence", sequence),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTurnError logs a failed turn. err carries the internal detail that is
// never returned to the caller.
func LogTurnError(logger *slog.Logger, runID, sessionID, errorKind string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("run_id", runID),
		slog.String("session_id", sessionID),
		slog.String("error_kind", errorKind),
		slog.Float64("duration_ms", durationMs),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Error("turn failed", attrs...)
}

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Debug("graph run starting",
		slog.String("run_id", runID),
	)
}

// LogRunComplete logs successful graph run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Debug("graph run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunError logs graph run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Warn("graph run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogBreakerTransition logs a circuit breaker state change.
func LogBreakerTransition(logger *slog.Logger, name, from, to string) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if to == "open" {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "circuit breaker state changed",
		slog.String("breaker", name),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogSoftFailure logs a soft dependency failure that the turn continued past.
func LogSoftFailure(logger *slog.Logger, dependency string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("soft dependency failed, continuing",
		slog.String("dependency", dependency),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
