package errors

import (
	"fmt"
	"net/http"
)

// UpstreamError is a non-success status from a provider API.
// The response body is never kept since it can echo the user's message.
type UpstreamError struct {
	Provider   string
	Op         string
	StatusCode int
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	status := fmt.Sprintf("status %d", e.StatusCode)
	if text := http.StatusText(e.StatusCode); text != "" {
		status += " " + text
	}
	switch {
	case e.Provider != "" && e.Op != "":
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, status)
	case e.Provider != "":
		return fmt.Sprintf("%s: %s", e.Provider, status)
	default:
		return status
	}
}

// Category maps the status code. 529 is Anthropic's overloaded status.
func (e *UpstreamError) Category() Category {
	switch e.StatusCode {
	case 408, 409, 425, 429, 529:
		return CategoryTransient
	case 400, 413, 415, 422:
		return CategoryInvalidInput
	case 401, 403, 404:
		return CategoryPermanent
	}
	if e.StatusCode >= 500 {
		return CategoryTransient
	}
	return CategoryPermanent
}

// ValidationError is a request a provider would reject before it is sent,
// such as empty audio or an empty message list.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
