package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one utterance in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Checkpoint is the persisted record of one completed turn.
// Checkpoints are immutable once appended and identified by
// (SessionID, Sequence).
type Checkpoint struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Messages holds the turn's user and assistant messages in order.
	Messages []Message `json:"messages"`

	// Kind is the branch that produced the reply.
	Kind string `json:"kind,omitempty"`

	// InjectedContext is the long-term memory text shown to the model.
	InjectedContext string `json:"injected_context,omitempty"`

	// FactsUsed lists the memory record IDs behind InjectedContext.
	FactsUsed []string `json:"facts_used,omitempty"`

	RunID string `json:"run_id,omitempty"`
}

// New creates a checkpoint for a turn.
func New(sessionID string, sequence int64, messages ...Message) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		SessionID: sessionID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		Messages:  messages,
	}
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Clone returns a deep copy of c.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	cp.FactsUsed = append([]string(nil), c.FactsUsed...)
	return &cp
}

// Ack acknowledges an Append.
type Ack struct {
	Sequence int64
	// Duplicate is true when the sequence was already stored or already
	// folded into the summary; nothing was written.
	Duplicate bool
}

// Summary condenses the checkpoints removed by SummarizeAndTruncate.
type Summary struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`

	// ThroughSequence is the highest sequence folded into Text.
	// Sequences at or below it are never accepted again.
	ThroughSequence int64 `json:"through_sequence"`
}

// NextSequence returns the sequence for the next turn of a session given its
// summary (may be nil) and live checkpoints.
func NextSequence(summary *Summary, checkpoints []*Checkpoint) int64 {
	var high int64
	if summary != nil {
		high = summary.ThroughSequence
	}
	for _, c := range checkpoints {
		if c.Sequence > high {
			high = c.Sequence
		}
	}
	return high + 1
}

// MessageCount returns the number of messages held in checkpoints.
func MessageCount(checkpoints []*Checkpoint) int {
	n := 0
	for _, c := range checkpoints {
		n += len(c.Messages)
	}
	return n
}
