// Package graph is a small generic state-machine engine.
//
// A workflow is a set of named nodes that transform a state value S, joined by
// unconditional edges or by router functions that pick the next node from the
// current state. Graphs are built with a fluent builder, validated once by
// Compile, and the resulting CompiledGraph can be run concurrently.
//
//	g := graph.NewGraph[Turn]().
//	    AddNode("route", route).
//	    AddNode("reply", reply).
//	    AddConditionalEdge("route", pick).
//	    AddEdge("reply", graph.END).
//	    SetEntry("route")
//
//	compiled, err := g.Compile()
//	final, err := compiled.Run(graph.NewContext(ctx), initial)
//
// Run checks for cancellation before every node, converts node panics into
// *PanicError, and wraps node failures in *NodeError so callers can inspect
// the underlying cause with errors.Is and errors.As.
package graph
