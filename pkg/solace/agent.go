package solace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/randalmurphal/solace/pkg/solace/artifact"
	"github.com/randalmurphal/solace/pkg/solace/breaker"
	"github.com/randalmurphal/solace/pkg/solace/capability"
	"github.com/randalmurphal/solace/pkg/solace/checkpoint"
	"github.com/randalmurphal/solace/pkg/solace/config"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
	"github.com/randalmurphal/solace/pkg/solace/graph"
	"github.com/randalmurphal/solace/pkg/solace/memory"
	"github.com/randalmurphal/solace/pkg/solace/observability"
	"github.com/randalmurphal/solace/pkg/solace/prompt"
)

// MaxMessageRunes bounds the length of a text message.
const MaxMessageRunes = 8000

// Agent runs conversation turns. Safe for concurrent use.
type Agent struct {
	generator   *capability.GuardedGenerator
	transcriber *capability.GuardedTranscriber
	synthesizer *capability.GuardedSynthesizer
	images      *capability.GuardedImageGenerator

	memory      *memory.Manager
	checkpoints checkpoint.Store
	artifacts   artifact.Store
	prompts     *prompt.Builder
	router      Router
	breakers    *breaker.Registry

	settings config.Settings
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	now      func() time.Time

	graph    *graph.CompiledGraph[TurnState]
	sessions *sessionLocks
}

type longTermMemory struct {
	store    memory.VectorStore
	embedder memory.Embedder
	opts     []memory.Option
}

type options struct {
	transcriber capability.Transcriber
	synthesizer capability.Synthesizer
	images      capability.ImageGenerator
	memory      *longTermMemory
	artifacts   artifact.Store
	prompts     prompt.Set
	router      Router
	breakers    *breaker.Registry
	settings    config.Settings
	retry       *serrors.RetryConfig
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	now         func() time.Time
}

// Option configures an Agent.
type Option func(*options)

// WithTranscriber enables audio input.
func WithTranscriber(t capability.Transcriber) Option {
	return func(o *options) { o.transcriber = t }
}

// WithSynthesizer enables spoken replies on the audio branch. Without it the
// audio branch replies with text only.
func WithSynthesizer(s capability.Synthesizer) Option {
	return func(o *options) { o.synthesizer = s }
}

// WithImageGenerator enables the image branch. Without it image requests are
// answered by the conversation branch.
func WithImageGenerator(ig capability.ImageGenerator) Option {
	return func(o *options) { o.images = ig }
}

// WithLongTermMemory enables fact extraction and retrieval. The Manager is
// built with the agent's vector_store breaker, settings, logger and metrics;
// opts are applied after those.
func WithLongTermMemory(store memory.VectorStore, embedder memory.Embedder, opts ...memory.Option) Option {
	return func(o *options) {
		o.memory = &longTermMemory{store: store, embedder: embedder, opts: opts}
	}
}

// WithArtifacts sets where generated images and audio are kept.
// Default: an in-memory store.
func WithArtifacts(s artifact.Store) Option {
	return func(o *options) { o.artifacts = s }
}

// WithPrompts overrides the built-in prompts. Empty fields keep the defaults.
func WithPrompts(set prompt.Set) Option {
	return func(o *options) { o.prompts = set }
}

// WithRouter replaces the KeywordRouter.
func WithRouter(r Router) Option {
	return func(o *options) { o.router = r }
}

// WithBreakers shares a breaker registry. The registry is used as given;
// breaker settings are not applied to it.
func WithBreakers(r *breaker.Registry) Option {
	return func(o *options) { o.breakers = r }
}

// WithSettings sets deadlines, thresholds, breaker, retry and memory tuning.
func WithSettings(s config.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithRetry overrides the retry policy derived from settings.
func WithRetry(cfg serrors.RetryConfig) Option {
	return func(o *options) { o.retry = &cfg }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records turn, node and breaker metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracing creates spans for turns and nodes.
func WithTracing(sm observability.SpanManager) Option {
	return func(o *options) { o.spans = sm }
}

// WithClock sets the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewAgent creates an Agent. generator and store are required.
func NewAgent(generator capability.Generator, store checkpoint.Store, opts ...Option) (*Agent, error) {
	if generator == nil {
		return nil, errors.New("solace: generator is required")
	}
	if store == nil {
		return nil, errors.New("solace: checkpoint store is required")
	}

	o := options{
		settings: config.Defaults(),
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.settings.Validate(); err != nil {
		return nil, fmt.Errorf("solace: %w", err)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = observability.NoopMetrics{}
	}
	if o.spans == nil {
		o.spans = observability.NoopSpanManager{}
	}

	a := &Agent{
		checkpoints: store,
		artifacts:   o.artifacts,
		router:      o.router,
		breakers:    o.breakers,
		settings:    o.settings,
		logger:      o.logger,
		metrics:     o.metrics,
		spans:       o.spans,
		now:         o.now,
		sessions:    newSessionLocks(),
	}
	if a.artifacts == nil {
		a.artifacts = artifact.NewMemoryStore()
	}
	if a.router == nil {
		a.router = KeywordRouter{}
	}
	if a.breakers == nil {
		a.breakers = a.newRegistry()
	}

	retry := retryConfig(o.settings.Retry)
	if o.retry != nil {
		retry = *o.retry
	}
	a.generator = capability.GuardGenerator(generator, a.breakers.Get(breaker.NameGeneration), retry)
	if o.transcriber != nil {
		a.transcriber = capability.GuardTranscriber(o.transcriber, a.breakers.Get(breaker.NameSpeechToText), retry)
	}
	if o.synthesizer != nil {
		a.synthesizer = capability.GuardSynthesizer(o.synthesizer, a.breakers.Get(breaker.NameTextToSpeech), retry)
	}
	if o.images != nil {
		a.images = capability.GuardImageGenerator(o.images, a.breakers.Get(breaker.NameImage), retry)
	}

	if o.memory != nil {
		minRelevance := o.settings.Memory.MinRelevance
		memOpts := append([]memory.Option{
			memory.WithConfig(memory.Config{
				TopK:         o.settings.Memory.TopK,
				MinRelevance: &minRelevance,
				MinWords:     o.settings.Memory.MinWords,
				CacheItems:   o.settings.Memory.CacheItems,
			}),
			memory.WithLogger(a.logger),
			memory.WithMetrics(a.metrics),
		}, o.memory.opts...)
		m, err := memory.NewManager(o.memory.store, o.memory.embedder, a.breakers.Get(breaker.NameVectorStore), memOpts...)
		if err != nil {
			return nil, fmt.Errorf("solace: %w", err)
		}
		a.memory = m
	}

	prompts, err := prompt.NewBuilder(o.prompts)
	if err != nil {
		return nil, fmt.Errorf("solace: %w", err)
	}
	a.prompts = prompts

	compiled, err := a.buildGraph().Compile()
	if err != nil {
		return nil, fmt.Errorf("solace: compile turn graph: %w", err)
	}
	a.graph = compiled

	return a, nil
}

// newRegistry creates the capability breakers from settings. Transitions are
// logged and metered.
func (a *Agent) newRegistry() *breaker.Registry {
	reg := breaker.NewRegistry(capability.BreakerConfig(breaker.Config{
		FailureThreshold: a.settings.Breaker.FailureThreshold,
		RecoveryTimeout:  a.settings.Breaker.RecoveryTimeout,
		OnStateChange:    a.onBreakerChange,
	}))
	for name, bs := range a.settings.Breakers {
		reg.Configure(name, breaker.Config{
			FailureThreshold: bs.FailureThreshold,
			RecoveryTimeout:  bs.RecoveryTimeout,
		})
	}
	return reg
}

func (a *Agent) onBreakerChange(name string, from, to breaker.State) {
	observability.LogBreakerTransition(a.logger, name, from.String(), to.String())
	a.metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
}

func retryConfig(s config.RetrySettings) serrors.RetryConfig {
	cfg := serrors.DefaultRetry
	if s.MaxAttempts > 0 {
		cfg.MaxAttempts = s.MaxAttempts
	}
	if s.InitialBackoff > 0 {
		cfg.InitialBackoff = s.InitialBackoff
	}
	if s.MaxBackoff > 0 {
		cfg.MaxBackoff = s.MaxBackoff
	}
	return cfg
}

// Breakers returns the registry holding the agent's capability breakers.
func (a *Agent) Breakers() *breaker.Registry {
	return a.breakers
}

// Memory returns the long-term memory manager, or nil when disabled.
func (a *Agent) Memory() *memory.Manager {
	return a.memory
}

// Artifacts returns the store holding generated images and audio.
func (a *Agent) Artifacts() artifact.Store {
	return a.artifacts
}

// History returns the persisted summary (nil if none) and live checkpoints of
// a session.
func (a *Agent) History(ctx context.Context, sessionID string) (*checkpoint.Summary, []*checkpoint.Checkpoint, error) {
	summary, err := a.checkpoints.Summary(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	cps, err := a.checkpoints.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return summary, cps, nil
}

// Close releases the memory manager's cache. Stores passed to the agent are
// owned by the caller.
func (a *Agent) Close() {
	if a.memory != nil {
		a.memory.Close()
	}
}

type turnResult struct {
	state TurnState
	err   error
}

// RunTurn runs one turn of sessionID. It returns exactly one of a *Reply or a
// *WorkflowError.
//
// cfg.Deadline bounds the whole call, including the wait for an earlier turn
// of the same session. When it fires RunTurn returns TIMEOUT at once, even if
// a capability ignores cancellation; the abandoned turn keeps the session
// until it exits and never persists. A turn whose checkpoint append already
// started is waited for instead, and returns its reply.
func (a *Agent) RunTurn(ctx context.Context, sessionID string, msg UserMessage, cfg RunConfig) (*Reply, error) {
	start := time.Now()
	runID := uuid.NewString()
	observability.LogTurnStart(a.logger, runID, sessionID)

	if we := a.validate(sessionID, msg); we != nil {
		return nil, a.fail(ctx, runID, sessionID, we, errors.New(we.Message), start)
	}

	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = a.settings.TurnDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	release, err := a.sessions.acquire(ctx, sessionID)
	if err != nil {
		return nil, a.fail(ctx, runID, sessionID, newWorkflowError(ErrTimeout), fmt.Errorf("waiting for session: %w", err), start)
	}

	gate := &commitGate{}
	done := make(chan turnResult, 1)
	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				done <- turnResult{err: &graph.PanicError{NodeID: "turn", Value: r, Stack: string(debug.Stack())}}
			}
		}()
		state, err := a.turn(ctx, runID, sessionID, msg, gate)
		done <- turnResult{state: state, err: err}
	}()

	var res turnResult
	select {
	case res = <-done:
	case <-ctx.Done():
		select {
		case res = <-done:
		default:
			if gate.abandon() {
				return nil, a.fail(ctx, runID, sessionID, newWorkflowError(ErrTimeout), ctx.Err(), start)
			}
			res = <-done
		}
	}

	if res.err != nil {
		return nil, a.fail(ctx, runID, sessionID, newWorkflowError(classify(res.err)), res.err, start)
	}

	d := time.Since(start)
	observability.LogTurnComplete(a.logger, runID, sessionID, string(res.state.Kind), res.state.Sequence, millis(d))
	a.metrics.RecordTurn(context.WithoutCancel(ctx), string(res.state.Kind), "ok", d)
	return res.state.reply(), nil
}

func (a *Agent) validate(sessionID string, msg UserMessage) *WorkflowError {
	switch {
	case strings.TrimSpace(sessionID) == "":
		return validationError("A session is required.")
	case msg.empty():
		return validationError("Please enter a message.")
	case msg.hasAudio() && a.transcriber == nil:
		return validationError("Voice messages are not supported.")
	case !msg.hasAudio() && !utf8.ValidString(msg.Text):
		return validationError("The message could not be read.")
	case !msg.hasAudio() && utf8.RuneCountInString(msg.Text) > MaxMessageRunes:
		return validationError("That message is too long.")
	}
	return nil
}

func (a *Agent) fail(ctx context.Context, runID, sessionID string, we *WorkflowError, cause error, start time.Time) *WorkflowError {
	d := time.Since(start)
	observability.LogTurnError(a.logger, runID, sessionID, string(we.Kind), cause, millis(d))
	a.metrics.RecordTurn(context.WithoutCancel(ctx), "", string(we.Kind), d)
	return we
}

// turn loads the session history and runs the graph over it.
func (a *Agent) turn(ctx context.Context, runID, sessionID string, msg UserMessage, gate *commitGate) (TurnState, error) {
	summary, err := a.checkpoints.Summary(ctx, sessionID)
	if err != nil {
		return TurnState{}, &storeError{op: "load summary", err: err}
	}
	cps, err := a.checkpoints.Load(ctx, sessionID)
	if err != nil {
		return TurnState{}, &storeError{op: "load checkpoints", err: err}
	}

	state := a.initialState(runID, sessionID, msg, summary, cps)
	state.gate = gate
	logger := a.logger.With("session_id", sessionID)
	gctx := graph.NewContext(ctx, graph.WithLogger(logger), graph.WithRunID(runID))

	return a.graph.Run(gctx, state,
		graph.WithGraphName("solace.turn"),
		graph.WithObservabilityLogger(a.logger),
		graph.WithMetrics(a.metrics),
		graph.WithTracing(a.spans),
	)
}

func (a *Agent) initialState(runID, sessionID string, msg UserMessage, summary *checkpoint.Summary, cps []*checkpoint.Checkpoint) TurnState {
	live := checkpoint.MessageCount(cps)
	msgs := make([]checkpoint.Message, 0, live+2)
	for _, c := range cps {
		msgs = append(msgs, c.Messages...)
	}

	state := TurnState{
		SessionID:    sessionID,
		RunID:        runID,
		Scope:        a.scope(sessionID, msg),
		Input:        msg,
		Messages:     msgs,
		LiveMessages: live,
		Sequence:     checkpoint.NextSequence(summary, cps),
	}
	if summary != nil {
		state.Summary = summary.Text
	}
	if !msg.hasAudio() {
		state = state.withUserText(strings.TrimSpace(msg.Text), a.now().UTC())
	}
	return state
}

func (s TurnState) withUserText(text string, at time.Time) TurnState {
	s.UserText = text
	s.UserAt = at
	s.Messages = append(s.Messages, checkpoint.Message{Role: checkpoint.RoleUser, Content: text, Timestamp: at})
	return s
}

// scope returns the memory scope of a turn: the user when user scoping is on
// and a user ID is present, otherwise the session.
func (a *Agent) scope(sessionID string, msg UserMessage) string {
	if a.settings.Memory.UserScope && strings.TrimSpace(msg.UserID) != "" {
		return "user:" + msg.UserID
	}
	return "session:" + sessionID
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
