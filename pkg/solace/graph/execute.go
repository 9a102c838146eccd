package graph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/solace/pkg/solace/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run executes the graph from the entry point with the given initial state.
//
// On success it returns the state after the last node before END. On error
// it returns the state at the point of failure together with one of
// *NodeError, *PanicError, *RouterError, *CancellationError or
// *MaxIterationsError.
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := ctx.RunID()
	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID)

	spanCtx, runSpan := cfg.spans.StartRunSpan(ctx, cfg.graphName, runID)
	defer func() {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	var nodeCount int
	result, nodeCount, runErr = cg.runFrom(spanCtx, ctx, state, cg.entryPoint, &cfg)

	duration := time.Since(startTime)
	cfg.metrics.RecordGraphRun(spanCtx, runErr == nil, duration)

	durationMs := float64(duration.Microseconds()) / 1000
	if runErr != nil {
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, lastNodeOf(runErr))
	} else {
		observability.LogRunComplete(cfg.logger, runID, durationMs, nodeCount)
	}

	return result, runErr
}

// runFrom executes the loop starting at startNode. spanCtx carries trace
// context; gCtx carries cancellation, logger and run metadata.
func (cg *CompiledGraph[S]) runFrom(spanCtx context.Context, gCtx Context, state S, startNode string, cfg *runConfig) (S, int, error) {
	current := startNode
	iterations := 0
	nodeCount := 0

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return state, nodeCount, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		if err := gCtx.Err(); err != nil {
			return state, nodeCount, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  err,
			}
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeSpanCtx, nodeSpan := cfg.spans.StartNodeSpan(spanCtx, current)
		nodeStart := time.Now()

		var nodeErr error
		state, nodeErr = cg.executeNode(nodeSpanCtx, gCtx, current, state)

		nodeDuration := time.Since(nodeStart)
		cfg.metrics.RecordNodeExecution(nodeSpanCtx, current, nodeDuration, nodeErr)
		cfg.spans.EndSpanWithError(nodeSpan, nodeErr)

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			var panicErr *PanicError
			if cause := gCtx.Err(); cause != nil && !errors.As(nodeErr, &panicErr) {
				return state, nodeCount, &CancellationError{
					NodeID:       current,
					State:        state,
					Cause:        cause,
					WasExecuting: true,
				}
			}
			return state, nodeCount, nodeErr
		}
		observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Microseconds())/1000)
		nodeCount++

		next, err := cg.nextNode(gCtx, state, current)
		if err != nil {
			return state, nodeCount, err
		}
		current = next
	}

	return state, nodeCount, nil
}

// executeNode runs a single node with panic recovery.
func (cg *CompiledGraph[S]) executeNode(spanCtx context.Context, ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.nodes[nodeID]
	if !exists {
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withNodeID(nodeID).withParent(mergeSpan(ec.Context, spanCtx))
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node. Routers take precedence over simple edges.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.routers[current]; exists {
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withNodeID(current)
		}

		next := router(routerCtx, state)
		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if next != END && !cg.HasNode(next) {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrRouterTargetNotFound,
			}
		}

		return next, nil
	}

	next, ok := cg.edges[current]
	if !ok {
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}
	return next, nil
}

func lastNodeOf(err error) string {
	var nodeErr *NodeError
	var panicErr *PanicError
	var maxErr *MaxIterationsError
	var cancelErr *CancellationError
	var routerErr *RouterError
	switch {
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &maxErr):
		return maxErr.LastNodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &routerErr):
		return routerErr.FromNode
	}
	return ""
}

// mergeSpan returns base with the span recorded in spanCtx attached, so nodes
// see the node span while keeping the run's cancellation and values.
func mergeSpan(base, spanCtx context.Context) context.Context {
	span := trace.SpanFromContext(spanCtx)
	if !span.SpanContext().IsValid() {
		return base
	}
	return trace.ContextWithSpan(base, span)
}
