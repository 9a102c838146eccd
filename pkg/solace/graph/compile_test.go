package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_LinearGraph(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, "a", compiled.EntryPoint())
	assert.Equal(t, []string{"a", "b"}, compiled.NodeIDs())
}

func TestCompile_ValidCycle(t *testing.T) {
	router := func(ctx Context, s Counter) string {
		if s.Value >= 3 {
			return END
		}
		return "a"
	}

	_, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("check", passthrough[Counter]).
		AddEdge("a", "check").
		AddConditionalEdge("check", router).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Graph[Counter]
		want  error
	}{
		{
			name: "no entry point",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddNode("a", increment).AddEdge("a", END)
			},
			want: ErrNoEntryPoint,
		},
		{
			name: "entry not found",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddNode("a", increment).AddEdge("a", END).SetEntry("missing")
			},
			want: ErrEntryNotFound,
		},
		{
			name: "missing edge target",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddNode("a", increment).AddEdge("a", "ghost").SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "missing edge source",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddNode("a", increment).AddEdge("a", END).AddEdge("ghost", END).SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "conditional source missing",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().
					AddNode("a", increment).
					AddEdge("a", END).
					AddConditionalEdge("ghost", func(Context, Counter) string { return END }).
					SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "no path to end",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().
					AddNode("a", increment).
					AddNode("b", increment).
					AddEdge("a", "b").
					AddEdge("b", "a").
					SetEntry("a")
			},
			want: ErrNoPathToEnd,
		},
		{
			name: "fan out without router",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().
					AddNode("a", increment).
					AddNode("b", increment).
					AddNode("c", increment).
					AddEdge("a", "b").
					AddEdge("a", "c").
					AddEdge("b", END).
					AddEdge("c", END).
					SetEntry("a")
			},
			want: ErrFanOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.build().Compile()
			require.Error(t, err)
			assert.Nil(t, compiled)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_MultipleErrors_AllReturned(t *testing.T) {
	_, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", "ghost1").
		AddEdge("ghost2", END).
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.Contains(t, err.Error(), "ghost1")
	assert.Contains(t, err.Error(), "ghost2")
}

func TestCompiledGraph_Introspection(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddNode("c", increment).
		AddEdge("a", "b").
		AddConditionalEdge("b", func(Context, Counter) string { return "c" }).
		AddEdge("c", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	next, ok := compiled.Successor("a")
	assert.True(t, ok)
	assert.Equal(t, "b", next)

	_, ok = compiled.Successor("b")
	assert.False(t, ok)

	assert.Equal(t, []string{"a"}, compiled.Predecessors("b"))
	assert.True(t, compiled.IsConditional("b"))
	assert.False(t, compiled.IsConditional("a"))
	assert.True(t, compiled.HasNode("c"))
	assert.False(t, compiled.HasNode(END))
}

func TestCompile_RecompilingDoesNotAffectPrevious(t *testing.T) {
	g := NewGraph[Counter]().
		AddNode("a", increment).
		AddEdge("a", END).
		SetEntry("a")

	first, err := g.Compile()
	require.NoError(t, err)

	g.AddNode("b", increment)
	second, err := g.Compile()
	require.NoError(t, err)

	assert.False(t, first.HasNode("b"))
	assert.True(t, second.HasNode("b"))
}
