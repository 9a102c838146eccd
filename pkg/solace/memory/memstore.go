package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreClosed is returned by MemoryStore after Close.
var ErrStoreClosed = errors.New("memory: store closed")

// MemoryStore is an in-process VectorStore doing exact cosine search.
// Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[string][]Record
	ids    map[string]struct{}
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scopes: make(map[string][]Record),
		ids:    make(map[string]struct{}),
	}
}

// Add implements VectorStore.
func (s *MemoryStore) Add(ctx context.Context, rec Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	if _, ok := s.ids[rec.ID]; ok {
		return false, nil
	}
	rec.Score = 0
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	s.ids[rec.ID] = struct{}{}
	s.scopes[rec.Scope] = append(s.scopes[rec.Scope], rec)
	return true, nil
}

// Query implements VectorStore.
func (s *MemoryStore) Query(ctx context.Context, scope string, embedding []float32, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	recs := s.scopes[scope]
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		rec.Score = cosine(embedding, rec.Embedding)
		out = append(out, rec)
	}
	sortRecords(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of records in scope.
func (s *MemoryStore) Len(scope string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scopes[scope])
}

// Close implements VectorStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
