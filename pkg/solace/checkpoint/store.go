// Package checkpoint stores per-session conversation history.
//
// Each completed turn is appended as an immutable Checkpoint keyed by
// (session ID, sequence). Older checkpoints can be folded into a Summary,
// whose ThroughSequence keeps sequence numbers from ever being reused.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
)

// Store persists conversation checkpoints.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores c. Appending a (SessionID, Sequence) pair that already
	// exists, or whose sequence is at or below the summary's
	// ThroughSequence, writes nothing and returns Ack{Duplicate: true}.
	Append(ctx context.Context, sessionID string, c *Checkpoint) (Ack, error)

	// Load returns the live checkpoints of a session in strictly increasing
	// sequence order. Unknown sessions return an empty slice.
	Load(ctx context.Context, sessionID string) ([]*Checkpoint, error)

	// SummarizeAndTruncate replaces every checkpoint except the last
	// keepLastN with summary, atomically.
	SummarizeAndTruncate(ctx context.Context, sessionID, summary string, keepLastN int) error

	// Summary returns the session summary, or nil if none exists.
	Summary(ctx context.Context, sessionID string) (*Summary, error)

	// Close releases any resources.
	Close() error
}

// Sentinel errors for checkpoint operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrSessionRequired indicates an empty session ID.
	ErrSessionRequired = errors.New("session ID required")

	// ErrInvalidCheckpoint indicates a nil checkpoint, a non-positive
	// sequence or a session mismatch.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")

	// ErrInvalidKeep indicates a negative keepLastN.
	ErrInvalidKeep = errors.New("keepLastN must not be negative")
)

func validateAppend(sessionID string, c *Checkpoint) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if c == nil {
		return fmt.Errorf("%w: nil", ErrInvalidCheckpoint)
	}
	if c.Sequence <= 0 {
		return fmt.Errorf("%w: sequence %d", ErrInvalidCheckpoint, c.Sequence)
	}
	if c.SessionID != "" && c.SessionID != sessionID {
		return fmt.Errorf("%w: session %q does not match %q", ErrInvalidCheckpoint, c.SessionID, sessionID)
	}
	return nil
}

func normalize(sessionID string, c *Checkpoint) *Checkpoint {
	cp := c.Clone()
	cp.SessionID = sessionID
	if cp.Version == 0 {
		cp.Version = Version
	}
	return cp
}
