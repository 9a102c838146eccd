package graph

import (
	"fmt"
	"strings"
)

// Graph is a mutable builder for execution graphs.
//
// Graph is not safe for concurrent use while building. Build it on one
// goroutine and call Compile to obtain an immutable CompiledGraph that can be
// shared.
type Graph[S any] struct {
	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string
}

// NewGraph creates a new graph builder for state type S.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]NodeFunc[S]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
	}
}

// AddNode adds a named node to the graph.
//
// Panics if id is empty, reserved ("END" or "__end__", case-insensitive),
// contains whitespace, is already present, or if fn is nil. These are
// programming errors in graph construction.
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	if id == "" {
		panic("graph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END {
		panic("graph: node ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("graph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("graph: node function cannot be nil")
	}

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("graph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	return g
}

// AddEdge adds an unconditional edge. The target can be a node ID or END.
// References are validated by Compile, so edges may be added in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge routes from a node using router at runtime.
// A conditional edge takes precedence over simple edges from the same node.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S]) *Graph[S] {
	if router == nil {
		panic("graph: router function cannot be nil")
	}

	g.conditionalEdges[from] = router
	return g
}

// SetEntry designates the entry point node.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.entryPoint = id
	return g
}
