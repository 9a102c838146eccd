// Package capability defines the external capabilities a turn consumes:
// language generation, speech-to-text, text-to-speech and image generation.
//
// Providers live in subpackages (anthropic, gemini). Callers reach them only
// through the Guard wrappers, which route every call through the capability's
// circuit breaker and retry transient failures.
package capability

import (
	"context"
	"time"
)

// Role identifies a message sender.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn sent to a Generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest configures a generation call.
type GenerateRequest struct {
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerateResponse is the output of a generation call.
type GenerateResponse struct {
	Text     string        `json:"text"`
	Model    string        `json:"model,omitempty"`
	Usage    TokenUsage    `json:"usage"`
	Duration time.Duration `json:"duration"`
}

// Audio is an encoded audio clip.
type Audio struct {
	Data     []byte
	MIMEType string
}

// Image is an encoded image.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator produces text from a conversation.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// ImageGenerator renders an image from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}
