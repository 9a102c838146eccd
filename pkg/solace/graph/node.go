package graph

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// the copy, not rely on pointer mutation of shared data.
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It must return a node ID or END; an empty string or unknown ID is a
// runtime *RouterError.
type RouterFunc[S any] func(ctx Context, state S) string
