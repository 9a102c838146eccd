package solace

import (
	"strings"
	"time"

	"github.com/randalmurphal/solace/pkg/solace/capability"
	"github.com/randalmurphal/solace/pkg/solace/checkpoint"
)

// Kind is the reply branch chosen for a turn.
type Kind string

// Reply branches.
const (
	KindConversation Kind = "conversation"
	KindImage        Kind = "image"
	KindAudio        Kind = "audio"
)

// Valid reports whether k is a known branch.
func (k Kind) Valid() bool {
	switch k {
	case KindConversation, KindImage, KindAudio:
		return true
	}
	return false
}

// UserMessage is the input of a turn. Exactly one of Text or Audio is
// normally set; when both are present the audio wins and Text is ignored.
type UserMessage struct {
	Text  string
	Audio *capability.Audio

	// UserID optionally scopes long-term memory to a user across sessions.
	UserID string
}

func (m UserMessage) hasAudio() bool {
	return m.Audio != nil && len(m.Audio.Data) > 0
}

func (m UserMessage) empty() bool {
	return !m.hasAudio() && strings.TrimSpace(m.Text) == ""
}

// RunConfig configures a single turn.
type RunConfig struct {
	// Deadline bounds the whole turn, including waiting for an earlier turn
	// of the same session. Zero uses the agent's default.
	Deadline time.Duration
}

// Reply is the successful result of a turn.
type Reply struct {
	Text      string
	SessionID string

	// AudioRef and ImageRef are artifact references, set by the audio and
	// image branches.
	AudioRef string
	ImageRef string

	// Sequence is the checkpoint sequence the turn was stored under.
	Sequence int64
	Kind     Kind

	// FactsUsed lists the memory record IDs injected into the prompt.
	FactsUsed []string
}

// TurnState flows through the turn graph. It is built fresh for every turn
// from the persisted history and discarded once the reply is returned.
type TurnState struct {
	SessionID string
	RunID     string

	// Scope is the long-term memory scope of the turn.
	Scope string

	Input    UserMessage
	UserText string
	UserAt   time.Time

	// Summary is the persisted summary of truncated history.
	Summary string

	// Messages is the live history followed by this turn's messages.
	Messages []checkpoint.Message

	// LiveMessages counts messages held in live checkpoints, this turn's
	// included once it is persisted.
	LiveMessages int

	Kind            Kind
	InjectedContext string
	FactsUsed       []string
	FactsStored     int

	ReplyText string
	ReplyAt   time.Time
	AudioRef  string
	ImageRef  string

	Sequence   int64
	Persisted  bool
	Summarized bool

	gate *commitGate
}

func (s TurnState) reply() *Reply {
	return &Reply{
		Text:      s.ReplyText,
		SessionID: s.SessionID,
		AudioRef:  s.AudioRef,
		ImageRef:  s.ImageRef,
		Sequence:  s.Sequence,
		Kind:      s.Kind,
		FactsUsed: append([]string(nil), s.FactsUsed...),
	}
}

// conversation converts the history into generation messages.
func conversation(msgs []checkpoint.Message) []capability.Message {
	out := make([]capability.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case checkpoint.RoleUser:
			out = append(out, capability.Message{Role: capability.RoleUser, Content: m.Content})
		case checkpoint.RoleAssistant:
			out = append(out, capability.Message{Role: capability.RoleAssistant, Content: m.Content})
		}
	}
	return out
}
