package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	inner := errors.New("inner")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"node", &NodeError{NodeID: "n", Op: "execute", Err: inner}, "node n: execute: inner"},
		{"panic", &PanicError{NodeID: "n", Value: "boom"}, "node n panicked: boom"},
		{"cancel before", &CancellationError{NodeID: "n", Cause: context.Canceled}, "cancelled before node n: context canceled"},
		{"cancel during", &CancellationError{NodeID: "n", Cause: context.Canceled, WasExecuting: true}, "cancelled during node n: context canceled"},
		{"router", &RouterError{FromNode: "r", Returned: "x", Err: inner}, `router from r returned "x": inner`},
		{"max", &MaxIterationsError{Max: 3, LastNodeID: "n"}, "exceeded maximum iterations (3) at node n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")

	assert.ErrorIs(t, &NodeError{Err: inner}, inner)
	assert.ErrorIs(t, &RouterError{Err: inner}, inner)
	assert.ErrorIs(t, &CancellationError{Cause: context.DeadlineExceeded}, context.DeadlineExceeded)
	assert.ErrorIs(t, &MaxIterationsError{}, ErrMaxIterations)
}

func TestLastNodeOf(t *testing.T) {
	assert.Equal(t, "a", lastNodeOf(&NodeError{NodeID: "a"}))
	assert.Equal(t, "b", lastNodeOf(&PanicError{NodeID: "b"}))
	assert.Equal(t, "c", lastNodeOf(&MaxIterationsError{LastNodeID: "c"}))
	assert.Equal(t, "d", lastNodeOf(&CancellationError{NodeID: "d"}))
	assert.Equal(t, "e", lastNodeOf(&RouterError{FromNode: "e"}))
	assert.Equal(t, "", lastNodeOf(errors.New("x")))
}
