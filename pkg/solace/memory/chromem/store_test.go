package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
	"github.com/randalmurphal/solace/pkg/solace/memory"
)

func record(t *testing.T, scope, text string, at time.Time) memory.Record {
	t.Helper()
	emb, err := memory.NewHashingEmbedder(0).Embed(context.Background(), text)
	require.NoError(t, err)
	return memory.Record{
		ID:        memory.RecordID(scope, text),
		Scope:     scope,
		Text:      text,
		Embedding: emb,
		CreatedAt: at,
	}
}

func TestStore_AddAndQuery(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := s.Add(ctx, record(t, "s1", "I lost my dog last week.", at))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Add(ctx, record(t, "s1", "I lost my dog last week.", at))
	require.NoError(t, err)
	assert.False(t, created, "duplicate ID")

	_, err = s.Add(ctx, record(t, "s1", "My sister moved to Denver last spring.", at.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count("s1"))

	q := record(t, "s1", "my dog", at)
	got, err := s.Query(ctx, "s1", q.Embedding, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "I lost my dog last week.", got[0].Text)
	assert.Equal(t, "s1", got[0].Scope)
	assert.True(t, got[0].CreatedAt.Equal(at))
	assert.Greater(t, got[0].Score, got[1].Score)

	got, err = s.Query(ctx, "s1", q.Embedding, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_EmptyScope(t *testing.T) {
	s := New()
	got, err := s.Query(context.Background(), "nobody", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_ScopesIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := record(t, "a", "I lost my dog last week.", time.Now())
	_, err := s.Add(ctx, r)
	require.NoError(t, err)

	got, err := s.Query(ctx, "b", r.Embedding, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Validation(t *testing.T) {
	s := New()
	_, err := s.Add(context.Background(), memory.Record{Scope: "s1", Embedding: []float32{1}})
	assert.Error(t, err)
	_, err = s.Add(context.Background(), memory.Record{ID: "x", Scope: "s1"})
	assert.Error(t, err)
}

func TestStore_Closed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	_, err := s.Query(context.Background(), "s1", []float32{1}, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewPersistent(dir, false)
	require.NoError(t, err)
	r := record(t, "s1", "I lost my dog last week.", time.Now().UTC())
	_, err = s.Add(ctx, r)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewPersistent(dir, false)
	require.NoError(t, err)
	got, err := reopened.Query(ctx, "s1", r.Embedding, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)
	assert.Equal(t, r.Text, got[0].Text)
}

func TestStore_WithManager(t *testing.T) {
	ctx := context.Background()
	m, err := memory.NewManager(New(), memory.NewHashingEmbedder(0), breaker.New(breaker.NameVectorStore, breaker.Config{}))
	require.NoError(t, err)
	defer m.Close()

	require.Len(t, m.ExtractAndStore(ctx, "s1", "Hello, I lost my dog"), 1)
	got := m.RetrieveRelevant(ctx, "s1", "I still feel sad about it", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "Hello, I lost my dog", got[0].Text)
}
