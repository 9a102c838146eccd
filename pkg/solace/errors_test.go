package solace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
	"github.com/randalmurphal/solace/pkg/solace/capability"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
	"github.com/randalmurphal/solace/pkg/solace/graph"
)

func TestClassify(t *testing.T) {
	open := &breaker.OpenError{Name: breaker.NameGeneration, RetryAfter: time.Second}

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"panic", &graph.PanicError{NodeID: "router", Value: "boom"}, ErrInternal},
		{"breaker open", &graph.NodeError{NodeID: "conversation", Err: &capability.Error{Capability: "generation", Err: open}}, ErrCircuitOpen},
		{"cancellation", &graph.CancellationError{NodeID: "persist", Cause: context.DeadlineExceeded}, ErrTimeout},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), ErrTimeout},
		{"store", &storeError{op: "append checkpoint", err: errors.New("disk full")}, ErrInternal},
		{"store deadline", &storeError{op: "load", err: context.DeadlineExceeded}, ErrTimeout},
		{"validation", &graph.NodeError{NodeID: "transcribe", Err: &serrors.ValidationError{Field: "audio"}}, ErrValidation},
		{"upstream", &graph.NodeError{NodeID: "conversation", Err: &capability.Error{Capability: "generation", Err: errors.New("500")}}, ErrUpstreamFailure},
		{"router", &graph.RouterError{FromNode: "context", Err: graph.ErrInvalidRouterResult}, ErrInternal},
		{"unknown", errors.New("surprise"), ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestWorkflowError(t *testing.T) {
	err := newWorkflowError(ErrTimeout)
	assert.Equal(t, "TIMEOUT: "+userMessages[ErrTimeout], err.Error())

	wrapped := fmt.Errorf("turn: %w", err)
	assert.True(t, errors.Is(wrapped, &WorkflowError{Kind: ErrTimeout}))
	assert.False(t, errors.Is(wrapped, &WorkflowError{Kind: ErrInternal}))
	assert.Equal(t, ErrTimeout, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestUserMessagesCoverEveryKind(t *testing.T) {
	for _, k := range []ErrorKind{ErrValidation, ErrTimeout, ErrCircuitOpen, ErrUpstreamFailure, ErrInternal} {
		assert.NotEmpty(t, userMessages[k], k)
	}
}
