package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and creates an executable CompiledGraph.
// All validation failures are joined into the returned error.
//
// Validation checks:
//  1. Entry point must be set and reference an existing node
//  2. Edge sources and targets must reference existing nodes (or END)
//  3. A node without a router has at most one simple edge
//  4. The entry point must have a path to END
//
// Nodes unreachable from the entry are logged as warnings only.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for _, from := range sortedKeys(g.edges) {
		targets := g.edges[from]
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}

		for _, to := range targets {
			if to == END {
				continue
			}
			if _, exists := g.nodes[to]; !exists {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}

		if _, routed := g.conditionalEdges[from]; !routed && len(targets) > 1 {
			errs = append(errs, fmt.Errorf("%w: node '%s' has %d outgoing edges", ErrFanOut, from, len(targets)))
		}
	}

	for _, from := range sortedKeys(g.conditionalEdges) {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
	}

	if _, exists := g.nodes[g.entryPoint]; exists && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

// hasPathToEnd reports whether END is reachable from the entry point.
// Nodes with a router are assumed able to reach END.
func (g *Graph[S]) hasPathToEnd() bool {
	canReachEnd := map[string]bool{END: true}
	for from := range g.conditionalEdges {
		canReachEnd[from] = true
	}

	changed := true
	for changed {
		changed = false
		for from, targets := range g.edges {
			if canReachEnd[from] {
				continue
			}
			for _, to := range targets {
				if canReachEnd[to] {
					canReachEnd[from] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd[g.entryPoint]
}

func (g *Graph[S]) warnUnreachableNodes() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableNodes()
	for _, id := range sortedKeys(g.nodes) {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", id)
		}
	}
}

// findReachableNodes returns the nodes reachable from the entry point.
// Router targets are only known at runtime, so a node with a router is
// treated as reaching every node.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		next := g.edges[current]
		if _, routed := g.conditionalEdges[current]; routed {
			next = sortedKeys(g.nodes)
		}

		for _, target := range next {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	return reachable
}

func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string]string, len(g.edges))
	predecessors := make(map[string][]string)
	for _, from := range sortedKeys(g.edges) {
		to := g.edges[from][0]
		edges[from] = to
		if to != END {
			predecessors[to] = append(predecessors[to], from)
		}
	}

	routers := make(map[string]RouterFunc[S], len(g.conditionalEdges))
	for from, router := range g.conditionalEdges {
		routers[from] = router
	}

	return &CompiledGraph[S]{
		nodes:        nodes,
		edges:        edges,
		routers:      routers,
		predecessors: predecessors,
		entryPoint:   g.entryPoint,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
