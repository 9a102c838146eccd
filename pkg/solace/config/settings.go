package config

import (
	"errors"
	"fmt"
	"time"
)

// BreakerSettings tunes one circuit breaker.
type BreakerSettings struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// RetrySettings tunes retries inside guarded capabilities.
type RetrySettings struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// MemorySettings tunes long-term memory.
type MemorySettings struct {
	TopK         int
	MinRelevance float64
	MinWords     int
	CacheItems   int64
	// UserScope stores facts per user rather than per session when the
	// message carries a user ID.
	UserScope bool
}

// StorageSettings locates durable state. Empty paths keep state in memory.
type StorageSettings struct {
	CheckpointPath string
	VectorDir      string
	ArtifactDir    string
}

// ProviderSettings selects capability providers.
type ProviderSettings struct {
	AnthropicModel  string
	GeminiModel     string
	SpeechModel     string
	ImageModel      string
	EmbeddingModel  string
	EmbeddingDims   int
	Voice           string
	GeminiProject   string
	GeminiLocation  string
	MaxOutputTokens int
}

// Settings is the typed configuration of an agent.
type Settings struct {
	LogLevel string

	// TurnDeadline bounds a whole turn when the caller sets none.
	TurnDeadline time.Duration

	// SummaryThreshold is the number of live messages that triggers
	// summarization; KeepLast checkpoints survive it.
	SummaryThreshold int
	KeepLast         int

	Memory    MemorySettings
	Breaker   BreakerSettings
	Breakers  map[string]BreakerSettings
	Retry     RetrySettings
	Storage   StorageSettings
	Providers ProviderSettings
}

// Defaults returns the default settings.
func Defaults() Settings {
	return Settings{
		LogLevel:         "info",
		TurnDeadline:     30 * time.Second,
		SummaryThreshold: 20,
		KeepLast:         4,
		Memory: MemorySettings{
			TopK:         3,
			MinRelevance: 0.1,
			MinWords:     4,
			CacheItems:   10_000,
		},
		Breaker: BreakerSettings{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
		},
		Breakers: map[string]BreakerSettings{},
		Retry: RetrySettings{
			MaxAttempts:    2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
		Providers: ProviderSettings{
			MaxOutputTokens: 1024,
			GeminiLocation:  "us-central1",
		},
	}
}

// Load reads settings from cfg over Defaults and validates them.
func Load(cfg Config) (Settings, error) {
	s := Defaults()

	s.LogLevel = cfg.String("log_level", s.LogLevel)
	s.TurnDeadline = cfg.Duration("turn_deadline", s.TurnDeadline)
	s.SummaryThreshold = cfg.Int("summary.threshold", s.SummaryThreshold)
	s.KeepLast = cfg.Int("summary.keep_last", s.KeepLast)

	s.Memory.TopK = cfg.Int("memory.top_k", s.Memory.TopK)
	s.Memory.MinRelevance = cfg.Float("memory.min_relevance", s.Memory.MinRelevance)
	s.Memory.MinWords = cfg.Int("memory.min_words", s.Memory.MinWords)
	s.Memory.CacheItems = int64(cfg.Int("memory.cache_items", int(s.Memory.CacheItems)))
	s.Memory.UserScope = cfg.Bool("memory.user_scope", s.Memory.UserScope)

	s.Breaker = loadBreaker(cfg.Sub("breaker"), s.Breaker)
	overrides := cfg.Sub("breaker").Sub("overrides")
	for _, name := range overrides.Keys() {
		s.Breakers[name] = loadBreaker(overrides.Sub(name), BreakerSettings{})
	}

	s.Retry.MaxAttempts = cfg.Int("retry.max_attempts", s.Retry.MaxAttempts)
	s.Retry.InitialBackoff = cfg.Duration("retry.initial_backoff", s.Retry.InitialBackoff)
	s.Retry.MaxBackoff = cfg.Duration("retry.max_backoff", s.Retry.MaxBackoff)

	s.Storage.CheckpointPath = cfg.String("storage.checkpoint_path", s.Storage.CheckpointPath)
	s.Storage.VectorDir = cfg.String("storage.vector_dir", s.Storage.VectorDir)
	s.Storage.ArtifactDir = cfg.String("storage.artifact_dir", s.Storage.ArtifactDir)

	p := cfg.Sub("providers")
	s.Providers.AnthropicModel = p.String("anthropic_model", s.Providers.AnthropicModel)
	s.Providers.GeminiModel = p.String("gemini_model", s.Providers.GeminiModel)
	s.Providers.SpeechModel = p.String("speech_model", s.Providers.SpeechModel)
	s.Providers.ImageModel = p.String("image_model", s.Providers.ImageModel)
	s.Providers.EmbeddingModel = p.String("embedding_model", s.Providers.EmbeddingModel)
	s.Providers.EmbeddingDims = p.Int("embedding_dims", s.Providers.EmbeddingDims)
	s.Providers.Voice = p.String("voice", s.Providers.Voice)
	s.Providers.GeminiProject = p.String("gemini_project", s.Providers.GeminiProject)
	s.Providers.GeminiLocation = p.String("gemini_location", s.Providers.GeminiLocation)
	s.Providers.MaxOutputTokens = p.Int("max_output_tokens", s.Providers.MaxOutputTokens)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadBreaker(c Config, def BreakerSettings) BreakerSettings {
	return BreakerSettings{
		FailureThreshold: c.Int("failure_threshold", def.FailureThreshold),
		RecoveryTimeout:  c.Duration("recovery_timeout", def.RecoveryTimeout),
	}
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if s.TurnDeadline <= 0 {
		errs = append(errs, fmt.Errorf("turn_deadline must be positive, got %s", s.TurnDeadline))
	}
	if s.SummaryThreshold < 1 {
		errs = append(errs, fmt.Errorf("summary.threshold must be at least 1, got %d", s.SummaryThreshold))
	}
	if s.KeepLast < 0 {
		errs = append(errs, fmt.Errorf("summary.keep_last must not be negative, got %d", s.KeepLast))
	}
	if s.Memory.TopK < 1 {
		errs = append(errs, fmt.Errorf("memory.top_k must be at least 1, got %d", s.Memory.TopK))
	}
	if s.Memory.MinRelevance > 1 {
		errs = append(errs, fmt.Errorf("memory.min_relevance must be at most 1, got %g", s.Memory.MinRelevance))
	}
	if s.Breaker.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("breaker.failure_threshold must be at least 1, got %d", s.Breaker.FailureThreshold))
	}
	if s.Breaker.RecoveryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("breaker.recovery_timeout must be positive, got %s", s.Breaker.RecoveryTimeout))
	}
	for name, b := range s.Breakers {
		if b.FailureThreshold < 0 || b.RecoveryTimeout < 0 {
			errs = append(errs, fmt.Errorf("breaker.overrides.%s must not be negative", name))
		}
	}
	if s.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", s.Retry.MaxAttempts))
	}
	return errors.Join(errs...)
}
