package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
	"github.com/randalmurphal/solace/pkg/solace/observability"
)

// Defaults for Config.
const (
	DefaultTopK         = 3
	DefaultMinRelevance = 0.1
	DefaultOverFetch    = 3
	DefaultCacheItems   = 10_000
)

// recordNamespace seeds record IDs so identical facts map to identical IDs.
var recordNamespace = uuid.MustParse("6f1d0c8e-3b0a-4c55-9d77-2a54f1c6e0b3")

// RecordID returns the deterministic ID of text stored under scope.
func RecordID(scope, text string) string {
	return uuid.NewSHA1(recordNamespace, []byte(scope+"\x00"+normalizeText(text))).String()
}

// Config tunes a Manager. Zero fields take defaults.
type Config struct {
	// TopK is the number of records RetrieveRelevant returns when k <= 0.
	TopK int

	// MinRelevance drops retrieved records scoring below it. Nil means
	// DefaultMinRelevance; a negative value disables the floor.
	MinRelevance *float64

	// MinWords is passed to the default HeuristicClassifier.
	MinWords int

	// OverFetch multiplies k when querying the store, leaving room for the
	// relevance filter.
	OverFetch int

	// CacheItems bounds the embedding cache.
	CacheItems int64
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MinRelevance == nil {
		floor := DefaultMinRelevance
		c.MinRelevance = &floor
	}
	if c.MinWords <= 0 {
		c.MinWords = DefaultMinWords
	}
	if c.OverFetch <= 0 {
		c.OverFetch = DefaultOverFetch
	}
	if c.CacheItems <= 0 {
		c.CacheItems = DefaultCacheItems
	}
	return c
}

// Manager extracts facts from messages and retrieves them later.
// Safe for concurrent use.
type Manager struct {
	store      VectorStore
	embedder   Embedder
	breaker    *breaker.Breaker
	classifier Classifier
	cache      *ristretto.Cache
	cfg        Config
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig sets the tuning parameters.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

// WithClassifier replaces the HeuristicClassifier.
func WithClassifier(c Classifier) Option {
	return func(m *Manager) { m.classifier = c }
}

// WithLogger sets the logger for soft failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics records soft failures.
func WithMetrics(r observability.MetricsRecorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithClock sets the CreatedAt source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. Store and embedder calls run through b; a nil
// b gets a private breaker named breaker.NameVectorStore.
func NewManager(store VectorStore, embedder Embedder, b *breaker.Breaker, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("memory: store is required")
	}
	if embedder == nil {
		return nil, errors.New("memory: embedder is required")
	}
	if b == nil {
		b = breaker.New(breaker.NameVectorStore, breaker.Config{})
	}

	m := &Manager{
		store:    store,
		embedder: embedder,
		breaker:  b,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cfg = m.cfg.withDefaults()
	if m.classifier == nil {
		m.classifier = HeuristicClassifier{MinWords: m.cfg.MinWords}
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: m.cfg.CacheItems * 10,
		MaxCost:     m.cfg.CacheItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("memory: embedding cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// ExtractAndStore stores the substantive sentences of message under scope and
// returns the records it wrote. Records already present are skipped. Any
// failure is logged and yields nil; records written before the failure stay.
func (m *Manager) ExtractAndStore(ctx context.Context, scope, message string) []Record {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(message) == "" {
		return nil
	}

	var stored []Record
	for _, sentence := range SplitSentences(message) {
		ok, err := m.classifier.Substantive(ctx, sentence)
		if err != nil {
			m.softFail(ctx, "memory.classify", err)
			continue
		}
		if !ok {
			continue
		}

		rec := Record{
			ID:        RecordID(scope, sentence),
			Scope:     scope,
			Text:      sentence,
			CreatedAt: m.now().UTC(),
		}
		created, err := breaker.Execute(ctx, m.breaker, func(ctx context.Context) (bool, error) {
			emb, err := m.embed(ctx, sentence)
			if err != nil {
				return false, err
			}
			rec.Embedding = emb
			return m.store.Add(ctx, rec)
		})
		if err != nil {
			m.softFail(ctx, "memory.extract", err)
			return nil
		}
		if created {
			stored = append(stored, rec)
		}
	}

	if len(stored) > 0 {
		m.logger.Debug("memory stored", "scope", scope, "records", len(stored))
	}
	return stored
}

// RetrieveRelevant returns up to k records of scope relevant to query, most
// relevant first with ties broken by newer CreatedAt. k <= 0 means
// Config.TopK. Any failure is logged and yields nil.
func (m *Manager) RetrieveRelevant(ctx context.Context, scope, query string, k int) []Record {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = m.cfg.TopK
	}

	recs, err := breaker.Execute(ctx, m.breaker, func(ctx context.Context) ([]Record, error) {
		emb, err := m.embed(ctx, query)
		if err != nil {
			return nil, err
		}
		return m.store.Query(ctx, scope, emb, k*m.cfg.OverFetch)
	})
	if err != nil {
		m.softFail(ctx, "memory.retrieve", err)
		return nil
	}

	kept := recs[:0]
	for _, rec := range recs {
		if rec.Score >= *m.cfg.MinRelevance {
			kept = append(kept, rec)
		}
	}
	sortRecords(kept)
	if len(kept) > k {
		kept = kept[:k]
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// Close releases the embedding cache. The store is owned by the caller.
func (m *Manager) Close() {
	m.cache.Close()
}

func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := m.cache.Get(text); ok {
		return v.([]float32), nil
	}
	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	m.cache.Set(text, emb, 1)
	return emb, nil
}

func (m *Manager) softFail(ctx context.Context, dependency string, err error) {
	observability.LogSoftFailure(m.logger, dependency, err)
	m.metrics.RecordSoftFailure(ctx, dependency)
}

// sortRecords orders by Score descending, then CreatedAt descending.
func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

// FormatContext renders records as a bullet list for prompt injection.
func FormatContext(recs []Record) string {
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, rec := range recs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(rec.Text)
	}
	return b.String()
}

// Texts returns the Text of each record.
func Texts(recs []Record) []string {
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.Text
	}
	return out
}
