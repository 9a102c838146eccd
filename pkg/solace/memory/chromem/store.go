// Package chromem provides a memory.VectorStore backed by chromem-go, an
// embedded pure-Go vector database. Each scope gets its own collection.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/randalmurphal/solace/pkg/solace/memory"
)

const (
	metaScope     = "scope"
	metaCreatedAt = "created_at"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("chromem: store closed")

// Store implements memory.VectorStore.
//
// Duplicate IDs are detected for records added through this Store. After a
// persistent database is reopened, re-adding an existing ID overwrites the
// document with identical content.
type Store struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	known       map[string]struct{}
	closed      bool
}

var _ memory.VectorStore = (*Store)(nil)

// New returns an in-memory Store.
func New() *Store {
	return newStore(chromem.NewDB())
}

// NewPersistent returns a Store persisted under dir, loading any collections
// already there.
func NewPersistent(dir string, compress bool) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, fmt.Errorf("chromem: open %s: %w", dir, err)
	}
	return newStore(db), nil
}

func newStore(db *chromem.DB) *Store {
	return &Store{
		db:          db,
		collections: make(map[string]*chromem.Collection),
		known:       make(map[string]struct{}),
	}
}

func collectionName(scope string) string {
	return "scope:" + scope
}

func (s *Store) collection(scope string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[scope]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[scope]; ok {
		return col, nil
	}
	// embeddings are always supplied, so no embedding func
	col, err := s.db.GetOrCreateCollection(collectionName(scope), map[string]string{metaScope: scope}, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: collection %q: %w", scope, err)
	}
	s.collections[scope] = col
	return col, nil
}

// Add implements memory.VectorStore.
func (s *Store) Add(ctx context.Context, rec memory.Record) (bool, error) {
	if rec.ID == "" {
		return false, errors.New("chromem: record ID is required")
	}
	if len(rec.Embedding) == 0 {
		return false, errors.New("chromem: record embedding is required")
	}
	col, err := s.collection(rec.Scope)
	if err != nil {
		return false, err
	}

	key := rec.Scope + "\x00" + rec.ID
	s.mu.Lock()
	if _, ok := s.known[key]; ok {
		s.mu.Unlock()
		return false, nil
	}
	s.known[key] = struct{}{}
	s.mu.Unlock()

	err = col.AddDocument(ctx, chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Embedding: rec.Embedding,
		Metadata: map[string]string{
			metaScope:     rec.Scope,
			metaCreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		s.mu.Lock()
		delete(s.known, key)
		s.mu.Unlock()
		return false, fmt.Errorf("chromem: add document: %w", err)
	}
	return true, nil
}

// Query implements memory.VectorStore.
func (s *Store) Query(ctx context.Context, scope string, embedding []float32, limit int) ([]memory.Record, error) {
	col, err := s.collection(scope)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the collection size
	n := col.Count()
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	out := make([]memory.Record, 0, len(results))
	for _, r := range results {
		createdAt, _ := time.Parse(time.RFC3339Nano, r.Metadata[metaCreatedAt])
		out = append(out, memory.Record{
			ID:        r.ID,
			Scope:     scope,
			Text:      r.Content,
			Embedding: r.Embedding,
			CreatedAt: createdAt,
			Score:     float64(r.Similarity),
		})
	}
	return out, nil
}

// Count returns the number of records in scope.
func (s *Store) Count(scope string) int {
	col, err := s.collection(scope)
	if err != nil {
		return 0
	}
	return col.Count()
}

// Close implements memory.VectorStore. Persistent databases write through on
// every add, so there is nothing to flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
