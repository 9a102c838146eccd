package solace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
	"github.com/randalmurphal/solace/pkg/solace/capability"
	"github.com/randalmurphal/solace/pkg/solace/checkpoint"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
	"github.com/randalmurphal/solace/pkg/solace/graph"
	"github.com/randalmurphal/solace/pkg/solace/memory"
	"github.com/randalmurphal/solace/pkg/solace/observability"
	"github.com/randalmurphal/solace/pkg/solace/prompt"
)

// Node IDs of the turn graph.
const (
	NodeRouter       = "router"
	NodeTranscribe   = "transcribe"
	NodeContext      = "context"
	NodeConversation = "conversation"
	NodeImage        = "image"
	NodeAudio        = "audio"
	NodeExtract      = "extract"
	NodePersist      = "persist"
	NodeSummarize    = "summarize"
)

// Dependencies reported by soft failures.
const (
	depRouter    = "router"
	depSpeech    = breaker.NameTextToSpeech
	depArtifact  = "artifact"
	depSummarize = "summarize"
)

const imagePromptMaxTokens = 200

// turnMessages is the number of messages a turn appends.
const turnMessages = 2

func (a *Agent) buildGraph() *graph.Graph[TurnState] {
	return graph.NewGraph[TurnState]().
		AddNode(NodeRouter, a.routeNode).
		AddNode(NodeTranscribe, a.transcribeNode).
		AddNode(NodeContext, a.contextNode).
		AddNode(NodeConversation, a.conversationNode).
		AddNode(NodeImage, a.imageNode).
		AddNode(NodeAudio, a.audioNode).
		AddNode(NodeExtract, a.extractNode).
		AddNode(NodePersist, a.persistNode).
		AddNode(NodeSummarize, a.summarizeNode).
		AddConditionalEdge(NodeRouter, afterRoute).
		AddEdge(NodeTranscribe, NodeContext).
		AddConditionalEdge(NodeContext, branch).
		AddEdge(NodeConversation, NodeExtract).
		AddEdge(NodeImage, NodeExtract).
		AddEdge(NodeAudio, NodeExtract).
		AddConditionalEdge(NodeExtract, a.afterExtract).
		AddEdge(NodeSummarize, NodePersist).
		AddEdge(NodePersist, graph.END).
		SetEntry(NodeRouter)
}

func afterRoute(_ graph.Context, s TurnState) string {
	if s.Input.hasAudio() {
		return NodeTranscribe
	}
	return NodeContext
}

func branch(_ graph.Context, s TurnState) string {
	switch s.Kind {
	case KindConversation:
		return NodeConversation
	case KindImage:
		return NodeImage
	case KindAudio:
		return NodeAudio
	}
	return ""
}

// afterExtract summarizes when this turn would take the live history over
// the threshold. Persist always runs last.
func (a *Agent) afterExtract(_ graph.Context, s TurnState) string {
	if s.LiveMessages+turnMessages > a.settings.SummaryThreshold {
		return NodeSummarize
	}
	return NodePersist
}

// routeNode picks the reply branch. Audio input always replies with audio.
// Router failures fall back to conversation, as do image and audio requests
// the agent has no capability for.
func (a *Agent) routeNode(ctx graph.Context, s TurnState) (TurnState, error) {
	if s.Input.hasAudio() {
		s.Kind = KindAudio
		return s, nil
	}

	kind, err := a.router.Route(ctx, s.UserText)
	if err != nil {
		a.softFail(ctx, depRouter, err)
		kind = KindConversation
	}
	switch {
	case !kind.Valid():
		kind = KindConversation
	case kind == KindImage && a.images == nil:
		kind = KindConversation
	case kind == KindAudio && a.synthesizer == nil:
		kind = KindConversation
	}
	s.Kind = kind
	return s, nil
}

func (a *Agent) transcribeNode(ctx graph.Context, s TurnState) (TurnState, error) {
	text, err := a.transcriber.Transcribe(ctx, *s.Input.Audio)
	if errors.Is(err, capability.ErrEmptyResponse) {
		return s, &serrors.ValidationError{Field: "audio", Message: "no speech recognized"}
	}
	if err != nil {
		return s, err
	}
	return s.withUserText(text, a.now().UTC()), nil
}

// contextNode injects relevant long-term memory into the turn.
func (a *Agent) contextNode(ctx graph.Context, s TurnState) (TurnState, error) {
	if a.memory == nil {
		return s, nil
	}
	recs := a.memory.RetrieveRelevant(ctx, s.Scope, s.UserText, 0)
	s.InjectedContext = memory.FormatContext(recs)
	s.FactsUsed = nil
	for _, r := range recs {
		s.FactsUsed = append(s.FactsUsed, r.ID)
	}
	return s, nil
}

func (a *Agent) conversationNode(ctx graph.Context, s TurnState) (TurnState, error) {
	text, err := a.generate(ctx, a.prompts.Conversation(s.vars()), conversation(s.Messages), a.settings.Providers.MaxOutputTokens)
	if err != nil {
		return s, err
	}
	return s.withReply(text, a.now().UTC()), nil
}

// imageNode turns the request into an image prompt, renders it, stores the
// image and writes a short accompanying reply.
func (a *Agent) imageNode(ctx graph.Context, s TurnState) (TurnState, error) {
	vars := s.vars()
	description, err := a.generate(ctx, a.prompts.ImagePrompt(vars),
		[]capability.Message{{Role: capability.RoleUser, Content: s.UserText}}, imagePromptMaxTokens)
	if err != nil {
		return s, err
	}

	img, err := a.images.GenerateImage(ctx, description)
	if err != nil {
		return s, err
	}
	ref, err := a.artifacts.Put(ctx, s.SessionID, img.Data, img.MIMEType)
	if err != nil {
		return s, &storeError{op: "store image", err: err}
	}
	s.ImageRef = ref

	text, err := a.generate(ctx, a.prompts.Image(vars), conversation(s.Messages), a.settings.Providers.MaxOutputTokens)
	if err != nil {
		return s, err
	}
	return s.withReply(text, a.now().UTC()), nil
}

// audioNode writes a reply meant to be spoken and synthesizes it. Synthesis
// is optional: on failure the text reply still goes out.
func (a *Agent) audioNode(ctx graph.Context, s TurnState) (TurnState, error) {
	text, err := a.generate(ctx, a.prompts.Audio(s.vars()), conversation(s.Messages), a.settings.Providers.MaxOutputTokens)
	if err != nil {
		return s, err
	}
	s = s.withReply(text, a.now().UTC())

	if a.synthesizer == nil {
		return s, nil
	}
	audio, err := a.synthesizer.Synthesize(ctx, text)
	if err != nil {
		a.softFail(ctx, depSpeech, err)
		return s, nil
	}
	ref, err := a.artifacts.Put(ctx, s.SessionID, audio.Data, audio.MIMEType)
	if err != nil {
		a.softFail(ctx, depArtifact, err)
		return s, nil
	}
	s.AudioRef = ref
	return s, nil
}

// extractNode stores facts from the user's message. It finishes before the
// turn returns, so they can be recalled by the next turn.
func (a *Agent) extractNode(ctx graph.Context, s TurnState) (TurnState, error) {
	if a.memory == nil {
		return s, nil
	}
	s.FactsStored = len(a.memory.ExtractAndStore(ctx, s.Scope, s.UserText))
	return s, nil
}

// persistNode appends the turn's checkpoint. It is the last node. It refuses
// once the deadline has passed; after it claims the commit gate RunTurn waits
// for the append, so a checkpoint is stored exactly when a reply is returned.
func (a *Agent) persistNode(ctx graph.Context, s TurnState) (TurnState, error) {
	if err := ctx.Err(); err != nil {
		return s, err
	}
	if !s.gate.commit() {
		return s, context.DeadlineExceeded
	}

	cp := checkpoint.New(s.SessionID, s.Sequence,
		checkpoint.Message{Role: checkpoint.RoleUser, Content: s.UserText, Timestamp: s.UserAt},
		checkpoint.Message{Role: checkpoint.RoleAssistant, Content: s.ReplyText, Timestamp: s.ReplyAt},
	)
	cp.Kind = string(s.Kind)
	cp.InjectedContext = s.InjectedContext
	cp.FactsUsed = append([]string(nil), s.FactsUsed...)
	cp.RunID = ctx.RunID()

	ack, err := a.checkpoints.Append(context.WithoutCancel(ctx), s.SessionID, cp)
	if err != nil {
		return s, &storeError{op: "append checkpoint", err: err}
	}
	if ack.Duplicate {
		return s, &storeError{op: "append checkpoint", err: fmt.Errorf("sequence %d already stored", s.Sequence)}
	}

	s.Persisted = true
	s.LiveMessages += len(cp.Messages)
	return s, nil
}

// summarizeNode runs before persist and folds stored checkpoints into the
// session summary, keeping enough that KeepLast survive once this turn is
// appended. Failures leave the history untouched; the next turn tries again.
func (a *Agent) summarizeNode(ctx graph.Context, s TurnState) (TurnState, error) {
	cps, err := a.checkpoints.Load(ctx, s.SessionID)
	if err != nil {
		a.softFail(ctx, depSummarize, err)
		return s, nil
	}
	keep := max(a.settings.KeepLast-1, 0)
	if len(cps) <= keep {
		return s, nil
	}
	older, kept := cps[:len(cps)-keep], cps[len(cps)-keep:]

	text, err := a.generate(ctx, a.prompts.Summarize(prompt.Vars{Summary: s.Summary}),
		[]capability.Message{{Role: capability.RoleUser, Content: transcript(older)}},
		a.settings.Providers.MaxOutputTokens)
	if err != nil {
		a.softFail(ctx, depSummarize, err)
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}
	if err := a.checkpoints.SummarizeAndTruncate(ctx, s.SessionID, text, keep); err != nil {
		a.softFail(ctx, depSummarize, err)
		return s, nil
	}

	s.Summary = text
	s.Summarized = true
	s.LiveMessages = checkpoint.MessageCount(kept)
	return s, nil
}

func (a *Agent) generate(ctx graph.Context, system string, msgs []capability.Message, maxTokens int) (string, error) {
	resp, err := a.generator.Generate(ctx, capability.GenerateRequest{
		System:    system,
		Messages:  msgs,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (a *Agent) softFail(ctx graph.Context, dependency string, err error) {
	observability.LogSoftFailure(ctx.Logger(), dependency, err)
	a.metrics.RecordSoftFailure(ctx, dependency)
}

func (s TurnState) vars() prompt.Vars {
	return prompt.Vars{Summary: s.Summary, Context: s.InjectedContext}
}

func (s TurnState) withReply(text string, at time.Time) TurnState {
	s.ReplyText = text
	s.ReplyAt = at
	s.Messages = append(s.Messages, checkpoint.Message{Role: checkpoint.RoleAssistant, Content: text, Timestamp: at})
	return s
}

// transcript renders checkpoints as plain dialogue for summarization.
func transcript(cps []*checkpoint.Checkpoint) string {
	var b strings.Builder
	for _, c := range cps {
		for _, m := range c.Messages {
			switch m.Role {
			case checkpoint.RoleUser:
				b.WriteString("Person: ")
			case checkpoint.RoleAssistant:
				b.WriteString("Solace: ")
			default:
				continue
			}
			b.WriteString(m.Content)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
