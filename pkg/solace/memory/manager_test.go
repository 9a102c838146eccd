package memory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
)

// vectorEmbedder returns fixed vectors per text and counts calls.
type vectorEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (e *vectorEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *vectorEmbedder) Dimensions() int { return 3 }

type failingStore struct{ err error }

func (s failingStore) Add(context.Context, Record) (bool, error) { return false, s.err }
func (s failingStore) Query(context.Context, string, []float32, int) ([]Record, error) {
	return nil, s.err
}
func (s failingStore) Close() error { return nil }

func newTestManager(t *testing.T, store VectorStore, emb Embedder, b *breaker.Breaker, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))}, opts...)
	m, err := NewManager(store, emb, b, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, NewHashingEmbedder(0), nil)
	assert.Error(t, err)
	_, err = NewManager(NewMemoryStore(), nil, nil)
	assert.Error(t, err)
}

func TestNewManager_Defaults(t *testing.T) {
	m := newTestManager(t, NewMemoryStore(), NewHashingEmbedder(0), nil)
	cfg := m.Config()
	assert.Equal(t, DefaultTopK, cfg.TopK)
	require.NotNil(t, cfg.MinRelevance)
	assert.Equal(t, DefaultMinRelevance, *cfg.MinRelevance)
	assert.Equal(t, DefaultMinWords, cfg.MinWords)
	assert.Equal(t, DefaultOverFetch, cfg.OverFetch)
	assert.Equal(t, breaker.NameVectorStore, m.breaker.Name())
}

func TestManager_ExtractAndStore(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(t, store, NewHashingEmbedder(0), nil)
	ctx := context.Background()

	recs := m.ExtractAndStore(ctx, "s1", "Hi there. I lost my dog last week. Is that weird?")
	require.Len(t, recs, 1)
	assert.Equal(t, "I lost my dog last week.", recs[0].Text)
	assert.Equal(t, "s1", recs[0].Scope)
	assert.Equal(t, RecordID("s1", "I lost my dog last week."), recs[0].ID)
	assert.NotEmpty(t, recs[0].Embedding)
	assert.False(t, recs[0].CreatedAt.IsZero())

	// same fact again is not stored twice
	assert.Empty(t, m.ExtractAndStore(ctx, "s1", "I lost my dog last week."))
	assert.Equal(t, 1, store.Len("s1"))

	assert.Empty(t, m.ExtractAndStore(ctx, "s1", "thanks!"))
	assert.Empty(t, m.ExtractAndStore(ctx, "", "I lost my dog last week."))
}

func TestManager_ScenarioRetrieval(t *testing.T) {
	m := newTestManager(t, NewMemoryStore(), NewHashingEmbedder(0), nil)
	ctx := context.Background()

	require.Len(t, m.ExtractAndStore(ctx, "s1", "Hello, I lost my dog"), 1)

	got := m.RetrieveRelevant(ctx, "s1", "I still feel sad about it", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "Hello, I lost my dog", got[0].Text)
	assert.Greater(t, got[0].Score, DefaultMinRelevance)

	assert.Empty(t, m.RetrieveRelevant(ctx, "s2", "I still feel sad about it", 3), "scopes are isolated")
}

func TestManager_ZeroMinRelevance(t *testing.T) {
	vectors := map[string][]float32{
		"query":                    {1, 0, 0},
		"I like long walks alone.": {0, 1, 0},
	}
	always := WithClassifier(ClassifierFunc(func(context.Context, string) (bool, error) { return true, nil }))
	ctx := context.Background()

	def := newTestManager(t, NewMemoryStore(), &vectorEmbedder{vectors: vectors}, nil, always)
	require.Len(t, def.ExtractAndStore(ctx, "s1", "I like long walks alone."), 1)
	assert.Empty(t, def.RetrieveRelevant(ctx, "s1", "query", 3), "default floor drops unrelated records")

	zero := 0.0
	m := newTestManager(t, NewMemoryStore(), &vectorEmbedder{vectors: vectors}, nil, always, WithConfig(Config{MinRelevance: &zero}))
	require.NotNil(t, m.Config().MinRelevance)
	assert.Zero(t, *m.Config().MinRelevance)
	require.Len(t, m.ExtractAndStore(ctx, "s1", "I like long walks alone."), 1)
	got := m.RetrieveRelevant(ctx, "s1", "query", 3)
	require.Len(t, got, 1)
	assert.InDelta(t, 0, got[0].Score, 1e-6)
}

func TestManager_RetrieveOrdering(t *testing.T) {
	emb := &vectorEmbedder{vectors: map[string][]float32{
		"query":                      {1, 0, 0},
		"I moved to a new city.":     {1, 0, 0},
		"I started a new job there.": {1, 0, 0},
		"My mother is unwell.":       {0.6, 0.8, 0},
		"I like long walks alone.":   {0, 1, 0},
	}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { now = now.Add(time.Minute); return now }

	floor := 0.5
	m := newTestManager(t, NewMemoryStore(), emb, nil,
		WithClock(clock),
		WithConfig(Config{MinRelevance: &floor}),
		WithClassifier(ClassifierFunc(func(context.Context, string) (bool, error) { return true, nil })),
	)
	ctx := context.Background()
	for _, s := range []string{"I moved to a new city.", "I started a new job there.", "My mother is unwell.", "I like long walks alone."} {
		require.Len(t, m.ExtractAndStore(ctx, "s1", s), 1)
	}

	got := m.RetrieveRelevant(ctx, "s1", "query", 0)
	require.Len(t, got, 3)
	// equal scores: newer first
	assert.Equal(t, "I started a new job there.", got[0].Text)
	assert.Equal(t, "I moved to a new city.", got[1].Text)
	assert.Equal(t, "My mother is unwell.", got[2].Text)
	assert.InDelta(t, 0.6, got[2].Score, 1e-6)

	got = m.RetrieveRelevant(ctx, "s1", "query", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "I started a new job there.", got[0].Text)
}

func TestManager_BreakerOpenDegrades(t *testing.T) {
	store := NewMemoryStore()
	b := breaker.New(breaker.NameVectorStore, breaker.Config{})
	m := newTestManager(t, store, NewHashingEmbedder(0), b)
	ctx := context.Background()

	require.Len(t, m.ExtractAndStore(ctx, "s1", "I lost my dog last week."), 1)

	b.Trip()
	assert.Nil(t, m.RetrieveRelevant(ctx, "s1", "I lost my dog", 3))
	assert.Nil(t, m.ExtractAndStore(ctx, "s1", "My sister moved to Denver last spring."))
	assert.Equal(t, 1, store.Len("s1"))
}

func TestManager_BackendFailuresOpenBreaker(t *testing.T) {
	b := breaker.New(breaker.NameVectorStore, breaker.Config{FailureThreshold: 2})
	m := newTestManager(t, failingStore{err: errors.New("backend down")}, NewHashingEmbedder(0), b)
	ctx := context.Background()

	assert.Nil(t, m.RetrieveRelevant(ctx, "s1", "I lost my dog", 3))
	assert.Nil(t, m.ExtractAndStore(ctx, "s1", "I lost my dog last week."))
	assert.Equal(t, breaker.Open, b.State())
}

func TestManager_EmbedderFailure(t *testing.T) {
	emb := &vectorEmbedder{err: errors.New("quota")}
	m := newTestManager(t, NewMemoryStore(), emb, nil)
	ctx := context.Background()

	assert.Nil(t, m.ExtractAndStore(ctx, "s1", "I lost my dog last week."))
	assert.Nil(t, m.RetrieveRelevant(ctx, "s1", "dog", 3))
}

func TestManager_ClassifierErrorSkipsSentence(t *testing.T) {
	calls := 0
	cls := ClassifierFunc(func(_ context.Context, s string) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("classifier down")
		}
		return true, nil
	})
	m := newTestManager(t, NewMemoryStore(), NewHashingEmbedder(0), nil, WithClassifier(cls))

	recs := m.ExtractAndStore(context.Background(), "s1", "First fact here. Second fact here.")
	require.Len(t, recs, 1)
	assert.Equal(t, "Second fact here.", recs[0].Text)
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext(nil))
	recs := []Record{{Text: "I lost my dog."}, {Text: "My sister moved."}}
	assert.Equal(t, "- I lost my dog.\n- My sister moved.", FormatContext(recs))
	assert.Equal(t, []string{"I lost my dog.", "My sister moved."}, Texts(recs))
}
