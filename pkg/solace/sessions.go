package solace

import (
	"context"
	"sync"
	"sync/atomic"
)

// sessionLocks queues turns per session. Entries are dropped once no turn
// holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire waits for the session until ctx ends. The returned release must be
// called exactly once.
func (l *sessionLocks) acquire(ctx context.Context, sessionID string) (release func(), err error) {
	l.mu.Lock()
	s, ok := l.locks[sessionID]
	if !ok {
		s = &sessionLock{sem: make(chan struct{}, 1)}
		l.locks[sessionID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
		return func() {
			<-s.sem
			l.unref(sessionID, s)
		}, nil
	case <-ctx.Done():
		l.unref(sessionID, s)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) unref(sessionID string, s *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.locks, sessionID)
	}
}

// active returns the number of sessions with a running or queued turn.
func (l *sessionLocks) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// commitGate settles the race between a turn's deadline and its checkpoint
// append. Exactly one of commit and abandon succeeds.
type commitGate struct {
	state atomic.Int32
}

const (
	gateOpen int32 = iota
	gateCommitted
	gateAbandoned
)

// commit claims the gate for the append. A nil gate always commits.
func (g *commitGate) commit() bool {
	return g == nil || g.state.CompareAndSwap(gateOpen, gateCommitted)
}

// abandon claims the gate for RunTurn after the deadline fired.
func (g *commitGate) abandon() bool {
	return g.state.CompareAndSwap(gateOpen, gateAbandoned)
}
