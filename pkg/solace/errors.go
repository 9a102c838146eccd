package solace

import (
	"context"
	"errors"

	"github.com/randalmurphal/solace/pkg/solace/capability"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
	"github.com/randalmurphal/solace/pkg/solace/graph"
)

// ErrorKind classifies a failed turn.
type ErrorKind string

// Error kinds returned in WorkflowError.Kind.
const (
	// ErrValidation: the input was rejected. Retrying the same input fails again.
	ErrValidation ErrorKind = "VALIDATION"
	// ErrTimeout: the turn did not finish within its deadline.
	ErrTimeout ErrorKind = "TIMEOUT"
	// ErrCircuitOpen: a required capability is temporarily unavailable.
	ErrCircuitOpen ErrorKind = "CIRCUIT_OPEN"
	// ErrUpstreamFailure: a required capability failed.
	ErrUpstreamFailure ErrorKind = "UPSTREAM_FAILURE"
	// ErrInternal: a bug or a storage failure.
	ErrInternal ErrorKind = "INTERNAL"
)

// WorkflowError is the failed result of a turn. Message is short and safe to
// show to the user; the underlying cause is only logged.
type WorkflowError struct {
	Kind    ErrorKind
	Message string
}

func (e *WorkflowError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Is matches another *WorkflowError of the same kind, so callers can write
// errors.Is(err, &solace.WorkflowError{Kind: solace.ErrTimeout}).
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a *WorkflowError in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

var userMessages = map[ErrorKind]string{
	ErrValidation:      "The message could not be processed.",
	ErrTimeout:         "That took too long. Please try again.",
	ErrCircuitOpen:     "I'm having trouble responding right now. Please try again in a moment.",
	ErrUpstreamFailure: "Something went wrong while preparing a reply. Please try again.",
	ErrInternal:        "Something went wrong on our side. Please try again.",
}

func newWorkflowError(kind ErrorKind) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: userMessages[kind]}
}

func validationError(msg string) *WorkflowError {
	return &WorkflowError{Kind: ErrValidation, Message: msg}
}

// storeError marks a checkpoint or artifact storage failure.
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return e.op + ": " + e.err.Error() }

func (e *storeError) Unwrap() error { return e.err }

// classify maps an internal failure to the kind reported to the caller.
func classify(err error) ErrorKind {
	var (
		panicErr  *graph.PanicError
		cancelErr *graph.CancellationError
		storeErr  *storeError
		valErr    *serrors.ValidationError
		capErr    *capability.Error
	)
	switch {
	case errors.As(err, &panicErr):
		return ErrInternal
	case capability.IsOpen(err):
		return ErrCircuitOpen
	case errors.As(err, &cancelErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrTimeout
	case errors.As(err, &storeErr):
		return ErrInternal
	case errors.As(err, &valErr):
		return ErrValidation
	case errors.As(err, &capErr):
		return ErrUpstreamFailure
	}
	return ErrInternal
}
