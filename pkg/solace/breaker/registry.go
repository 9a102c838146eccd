package breaker

import (
	"sort"
	"sync"
)

// Names of the capability breakers used by the turn engine.
const (
	NameGeneration   = "generation"
	NameSpeechToText = "speech_to_text"
	NameTextToSpeech = "text_to_speech"
	NameImage        = "image"
	NameVectorStore  = "vector_store"
)

// Registry holds named, process-wide breakers.
// Breakers are created on first use from the shared defaults merged with any
// per-name override. Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	defaults  Config
	overrides map[string]Config
	breakers  map[string]*Breaker
}

// NewRegistry creates a registry whose breakers use defaults.
func NewRegistry(defaults Config) *Registry {
	return &Registry{
		defaults:  defaults,
		overrides: make(map[string]Config),
		breakers:  make(map[string]*Breaker),
	}
}

// Configure sets the override for name. Non-zero fields of cfg replace the
// defaults. It only affects breakers not yet created.
func (r *Registry) Configure(name string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = cfg
}

// Get returns the breaker for name, creating it if needed.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b = New(name, r.configFor(name))
	r.breakers[name] = b
	return b
}

// Lookup returns the breaker for name if it has been created.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Register adds b under its own name, replacing any existing breaker.
func (r *Registry) Register(b *Breaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[b.Name()] = b
}

// Names returns the names of created breakers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshots returns a snapshot of every created breaker, sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	names := r.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		if b, ok := r.Lookup(name); ok {
			out = append(out, b.Snapshot())
		}
	}
	return out
}

// ResetAll closes every created breaker.
func (r *Registry) ResetAll() {
	for _, name := range r.Names() {
		if b, ok := r.Lookup(name); ok {
			b.Reset()
		}
	}
}

// configFor merges the override for name onto the defaults.
// Callers must hold r.mu.
func (r *Registry) configFor(name string) Config {
	cfg := r.defaults
	o, ok := r.overrides[name]
	if !ok {
		return cfg
	}

	if o.FailureThreshold > 0 {
		cfg.FailureThreshold = o.FailureThreshold
	}
	if o.RecoveryTimeout > 0 {
		cfg.RecoveryTimeout = o.RecoveryTimeout
	}
	if o.IsFailure != nil {
		cfg.IsFailure = o.IsFailure
	}
	if o.Clock != nil {
		cfg.Clock = o.Clock
	}
	if o.OnStateChange != nil {
		cfg.OnStateChange = o.OnStateChange
	}
	return cfg
}
