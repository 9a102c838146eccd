// Package errors classifies failures of external capabilities and provides
// retry with backoff for the transient ones.
//
// The classification drives two decisions in the engine:
//   - Retry: transient failures are retried with exponential backoff
//   - Breaker accounting: only outages (not rejected input) count as failures
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category represents how an upstream error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, 5xx responses, dropped connections.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help but the upstream is at fault
	// or unusable. Examples: authentication failures, unknown model.
	CategoryPermanent

	// CategoryInvalidInput indicates the request itself was rejected.
	// Examples: empty audio, prompt refused, 400/422 responses.
	CategoryInvalidInput
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// InvalidInput creates an invalid-input error.
func InvalidInput(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryInvalidInput, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Category()
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryInvalidInput
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return err != nil && Categorize(err) == CategoryTransient
}

// IsOutage reports whether err indicates the upstream is unhealthy.
// Rejected input and caller cancellation are not outages.
// Used as the failure predicate of capability circuit breakers.
func IsOutage(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return Categorize(err) != CategoryInvalidInput
}
