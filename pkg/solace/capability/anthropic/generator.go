// Package anthropic implements capability.Generator on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/randalmurphal/solace/pkg/solace/capability"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
)

// Defaults for Generator.
const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 1024
)

// MessageClient is the subset of the SDK's message service Generator uses.
type MessageClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Generator implements capability.Generator.
type Generator struct {
	client    MessageClient
	model     string
	maxTokens int
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel sets the model.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// WithMaxTokens sets the default response budget.
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// WithClient replaces the SDK client, mainly for tests.
func WithClient(c MessageClient) Option {
	return func(g *Generator) { g.client = c }
}

// New creates a Generator authenticating with apiKey.
func New(apiKey string, opts ...Option) *Generator {
	g := &Generator{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		client := sdk.NewClient(option.WithAPIKey(apiKey))
		g.client = &client.Messages
	}
	return g
}

// Generate implements capability.Generator.
func (g *Generator) Generate(ctx context.Context, req capability.GenerateRequest) (*capability.GenerateResponse, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages:  toParams(req.Messages),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	resp, err := g.client.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &capability.GenerateResponse{
		Text:  strings.TrimSpace(text.String()),
		Model: string(resp.Model),
		Usage: capability.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		Duration: time.Since(start),
	}, nil
}

// toParams converts messages, merging consecutive turns of the same role
// since the API expects alternation.
func toParams(msgs []capability.Message) []sdk.MessageParam {
	type turn struct {
		role capability.Role
		text []string
	}
	var turns []turn
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == m.Role {
			turns[n-1].text = append(turns[n-1].text, m.Content)
			continue
		}
		turns = append(turns, turn{role: m.Role, text: []string{m.Content}})
	}

	out := make([]sdk.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := sdk.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.role == capability.RoleAssistant {
			out = append(out, sdk.NewAssistantMessage(block))
		} else {
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}

// classify maps SDK errors onto serrors types so breakers and retries can
// categorize them. The upstream body is dropped.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &serrors.UpstreamError{Provider: "anthropic", Op: "messages", StatusCode: apiErr.StatusCode}
	}
	return fmt.Errorf("anthropic: %w", err)
}
