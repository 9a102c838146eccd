package graph

import "sort"

// CompiledGraph is an immutable, executable graph created by Graph.Compile.
// It is safe for concurrent Run calls.
type CompiledGraph[S any] struct {
	nodes        map[string]NodeFunc[S]
	edges        map[string]string
	routers      map[string]RouterFunc[S]
	predecessors map[string][]string
	entryPoint   string
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in sorted order.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successor returns the target of the simple edge leaving id, if any.
// Router targets are decided at runtime and are not reported.
func (cg *CompiledGraph[S]) Successor(id string) (string, bool) {
	to, ok := cg.edges[id]
	return to, ok
}

// Predecessors returns the node IDs with a simple edge to id.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional returns true if the node routes through a RouterFunc.
func (cg *CompiledGraph[S]) IsConditional(id string) bool {
	_, ok := cg.routers[id]
	return ok
}
