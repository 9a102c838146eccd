// Package memory implements long-term memory: salient facts extracted from
// user turns, stored as embedded records scoped to a session or user, and
// retrieved by similarity for injection into later turns.
//
// Retrieval and extraction are soft dependencies. Manager never returns an
// error to its caller; backend failures are logged and yield no records.
package memory

import (
	"context"
	"time"
)

// Record is one stored fact.
//
// ID, Scope, Text, Embedding and CreatedAt never change once written. Score
// is the similarity to the query that returned the record and is not stored.
type Record struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"-"`
}

// VectorStore persists records and answers similarity queries within a scope.
type VectorStore interface {
	// Add stores rec. Adding an ID that already exists leaves the stored
	// record in place and reports created == false.
	Add(ctx context.Context, rec Record) (created bool, err error)

	// Query returns up to limit records of scope nearest to embedding, with
	// Score set. Order is unspecified.
	Query(ctx context.Context, scope string, embedding []float32, limit int) ([]Record, error)

	Close() error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Classifier decides whether a sentence is worth remembering.
type Classifier interface {
	Substantive(ctx context.Context, sentence string) (bool, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, sentence string) (bool, error)

// Substantive calls f.
func (f ClassifierFunc) Substantive(ctx context.Context, sentence string) (bool, error) {
	return f(ctx, sentence)
}
