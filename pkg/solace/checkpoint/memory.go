package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in memory.
// Useful for tests and single-process deployments without durability needs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	closed   bool
}

type sessionLog struct {
	checkpoints []*Checkpoint
	summary     *Summary
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionLog),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, sessionID string, c *Checkpoint) (Ack, error) {
	if err := validateAppend(sessionID, c); err != nil {
		return Ack{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Ack{}, ErrStoreClosed
	}

	log, ok := s.sessions[sessionID]
	if !ok {
		log = &sessionLog{}
		s.sessions[sessionID] = log
	}

	ack := Ack{Sequence: c.Sequence, Duplicate: true}
	if log.summary != nil && c.Sequence <= log.summary.ThroughSequence {
		return ack, nil
	}

	i := sort.Search(len(log.checkpoints), func(i int) bool {
		return log.checkpoints[i].Sequence >= c.Sequence
	})
	if i < len(log.checkpoints) && log.checkpoints[i].Sequence == c.Sequence {
		return ack, nil
	}

	log.checkpoints = append(log.checkpoints, nil)
	copy(log.checkpoints[i+1:], log.checkpoints[i:])
	log.checkpoints[i] = normalize(sessionID, c)

	ack.Duplicate = false
	return ack, nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	log, ok := s.sessions[sessionID]
	if !ok {
		return []*Checkpoint{}, nil
	}

	out := make([]*Checkpoint, len(log.checkpoints))
	for i, c := range log.checkpoints {
		out[i] = c.Clone()
	}
	return out, nil
}

// SummarizeAndTruncate implements Store.
func (s *MemoryStore) SummarizeAndTruncate(_ context.Context, sessionID, summary string, keepLastN int) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if keepLastN < 0 {
		return ErrInvalidKeep
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	log, ok := s.sessions[sessionID]
	if !ok {
		log = &sessionLog{}
		s.sessions[sessionID] = log
	}

	var through int64
	if log.summary != nil {
		through = log.summary.ThroughSequence
	}

	if drop := len(log.checkpoints) - keepLastN; drop > 0 {
		if last := log.checkpoints[drop-1].Sequence; last > through {
			through = last
		}
		log.checkpoints = append([]*Checkpoint(nil), log.checkpoints[drop:]...)
	}

	log.summary = &Summary{
		SessionID:       sessionID,
		Text:            summary,
		ThroughSequence: through,
		UpdatedAt:       time.Now().UTC(),
	}
	return nil
}

// Summary implements Store.
func (s *MemoryStore) Summary(_ context.Context, sessionID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	log, ok := s.sessions[sessionID]
	if !ok || log.summary == nil {
		return nil, nil
	}
	sum := *log.summary
	return &sum, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
