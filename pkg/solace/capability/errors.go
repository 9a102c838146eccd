package capability

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
)

// ErrEmptyResponse is returned when a provider answers without content.
var ErrEmptyResponse = errors.New("capability: empty response")

// Error is returned by guarded capabilities.
type Error struct {
	// Capability is the breaker name of the failed capability.
	Capability string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Capability, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsOpen reports whether err is a rejection by an open breaker.
func IsOpen(err error) bool {
	return errors.Is(err, breaker.ErrOpen)
}

// BreakerConfig returns cfg with IsFailure defaulted to serrors.IsOutage, so
// rejected input and caller cancellation never open a capability breaker.
func BreakerConfig(cfg breaker.Config) breaker.Config {
	if cfg.IsFailure == nil {
		cfg.IsFailure = serrors.IsOutage
	}
	return cfg
}
