package graph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes.
// It extends context.Context with a logger and run metadata.
//
// The executor derives a per-node Context carrying the node ID and a logger
// enriched with run_id and node_id.
type Context interface {
	context.Context

	// Logger returns the configured logger. Never nil.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	RunID() string

	// NodeID returns the node being executed, or "" outside a node.
	NodeID() string
}

type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	nodeID string
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }

func (c *executionContext) RunID() string { return c.runID }

func (c *executionContext) NodeID() string { return c.nodeID }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunID sets the run identifier. A UUID is generated when not set.
func WithRunID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext creates an execution context from a standard context.
//
//	ctx := graph.NewContext(parent,
//	    graph.WithLogger(logger),
//	    graph.WithRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withNodeID returns a derived context for the given node.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("run_id", c.runID, "node_id", nodeID),
		runID:   c.runID,
		nodeID:  nodeID,
	}
}

// withParent rebinds the context to parent, keeping services and metadata.
// Used to carry span context into node executions.
func (c *executionContext) withParent(parent context.Context) *executionContext {
	cp := *c
	cp.Context = parent
	return &cp
}
