// Package breaker implements a circuit breaker for calls to external
// capabilities.
//
// A Breaker starts CLOSED and counts consecutive failures. After
// FailureThreshold of them it opens and rejects calls with *OpenError without
// invoking the operation. Once RecoveryTimeout has elapsed the next call is
// admitted as a single HALF_OPEN probe: success closes the breaker, failure
// reopens it and restarts the timer.
//
// Breakers are safe for concurrent use. Create one per guarded capability and
// share it for the life of the process, typically through a Registry.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is matched by every rejection from an open breaker.
var ErrOpen = errors.New("circuit breaker is open")

// errPanicked records a panicking operation as a failure.
var errPanicked = errors.New("operation panicked")

// OpenError is returned when a call is rejected without being attempted.
type OpenError struct {
	// Name is the breaker that rejected the call.
	Name string
	// RetryAfter is the time left until a probe is admitted. Zero while a
	// probe is already in flight.
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker %q is open (retry after %s)", e.Name, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// Unwrap returns ErrOpen for errors.Is support.
func (e *OpenError) Unwrap() error {
	return ErrOpen
}

// Config configures a Breaker. Zero fields take defaults.
type Config struct {
	// FailureThreshold is the number of consecutive counted failures that
	// opens the breaker. Default: 5.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before admitting a
	// probe. Default: 30s.
	RecoveryTimeout time.Duration

	// IsFailure decides which errors count toward opening. Errors it rejects
	// are returned to the caller and leave the state unchanged.
	// Default: every non-nil error.
	IsFailure func(error) bool

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(name string, from, to State)
}

const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Breaker guards calls to one external capability.
type Breaker struct {
	name string
	cfg  Config

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a closed breaker.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		name: name,
		cfg:  cfg.withDefaults(),
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state. An open breaker whose recovery timeout
// has elapsed still reports Open until the next call moves it to HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call invokes fn through the breaker.
//
// If the breaker is open, fn is not invoked and an *OpenError is returned.
// Otherwise fn's error is returned unchanged. A panic in fn counts as a
// failure and is re-raised.
func (b *Breaker) Call(fn func() error) error {
	return b.do(fn, nil)
}

// Execute invokes fn through b and returns its value.
//
// If ctx is already done, fn is not invoked. Errors returned after ctx has
// ended are not counted: the caller gave up, the capability did not fail.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	if err := ctx.Err(); err != nil {
		return out, err
	}

	err := b.do(func() error {
		v, err := fn(ctx)
		out = v
		return err
	}, func(error) bool {
		return ctx.Err() == nil
	})
	return out, err
}

// Go runs fn through the breaker on a new goroutine. The result is delivered
// on the returned channel, which receives exactly one value.
func (b *Breaker) Go(ctx context.Context, fn func(context.Context) error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		ch <- err
	}()
	return ch
}

// Reset forces the breaker closed and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = Closed
	b.failures = 0
	b.probing = false
	b.mu.Unlock()

	b.notify(from, Closed)
}

// Trip forces the breaker open, restarting the recovery timer.
func (b *Breaker) Trip() {
	b.mu.Lock()
	from := b.state
	b.state = Open
	b.openedAt = b.cfg.Clock()
	b.probing = false
	b.mu.Unlock()

	b.notify(from, Open)
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Name                string        `json:"name"`
	State               State         `json:"-"`
	StateName           string        `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	OpenedAt            time.Time     `json:"opened_at,omitempty"`
	FailureThreshold    int           `json:"failure_threshold"`
	RecoveryTimeout     time.Duration `json:"recovery_timeout"`
}

// Snapshot returns the breaker's current state and counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Name:                b.name,
		State:               b.state,
		StateName:           b.state.String(),
		ConsecutiveFailures: b.failures,
		FailureThreshold:    b.cfg.FailureThreshold,
		RecoveryTimeout:     b.cfg.RecoveryTimeout,
	}
	if b.state != Closed {
		s.OpenedAt = b.openedAt
	}
	return s
}

// do admits fn, runs it and records the outcome. counted, when set, can
// exclude an error from failure accounting.
func (b *Breaker) do(fn func() error, counted func(error) bool) (err error) {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if !finished {
			b.record(probe, errPanicked, true)
		}
	}()

	err = fn()
	finished = true

	b.record(probe, err, counted == nil || counted(err))
	return err
}

// admit decides whether a call may proceed and whether it is the probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()

	switch b.state {
	case Closed:
		b.mu.Unlock()
		return false, nil

	case Open:
		elapsed := b.cfg.Clock().Sub(b.openedAt)
		if elapsed < b.cfg.RecoveryTimeout {
			b.mu.Unlock()
			return false, &OpenError{Name: b.name, RetryAfter: b.cfg.RecoveryTimeout - elapsed}
		}
		b.state = HalfOpen
		b.probing = true
		b.mu.Unlock()
		b.notify(Open, HalfOpen)
		return true, nil

	default:
		if b.probing {
			b.mu.Unlock()
			return false, &OpenError{Name: b.name}
		}
		b.probing = true
		b.mu.Unlock()
		return true, nil
	}
}

// record applies the outcome of an admitted call.
func (b *Breaker) record(probe bool, err error, counted bool) {
	b.mu.Lock()

	if probe {
		b.probing = false
	}

	from := b.state
	switch {
	case err == nil:
		b.failures = 0
		if b.state == HalfOpen && probe {
			b.state = Closed
		}

	case counted && (errors.Is(err, errPanicked) || b.cfg.IsFailure(err)):
		b.failures++
		switch b.state {
		case Closed:
			if b.failures >= b.cfg.FailureThreshold {
				b.state = Open
				b.openedAt = b.cfg.Clock()
			}
		case HalfOpen:
			if probe {
				b.state = Open
				b.openedAt = b.cfg.Clock()
			}
		}
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
