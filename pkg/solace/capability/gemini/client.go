// Package gemini implements the speech, image, embedding and generation
// capabilities on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/randalmurphal/solace/pkg/solace/capability"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
	"github.com/randalmurphal/solace/pkg/solace/memory"
)

// Default models.
const (
	DefaultGenerativeModel = "gemini-2.5-flash"
	DefaultSpeechModel     = "gemini-2.5-flash-preview-tts"
	DefaultImageModel      = "imagen-3.0-generate-002"
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultVoice           = "Kore"
	DefaultDimensions      = 768
)

const transcribePrompt = "Transcribe this audio verbatim. Reply with the transcript only."

// Models is the subset of the SDK's model service Client uses.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// Client implements capability.Generator, capability.Transcriber,
// capability.Synthesizer, capability.ImageGenerator and memory.Embedder.
type Client struct {
	models          Models
	generativeModel string
	speechModel     string
	imageModel      string
	embeddingModel  string
	voice           string
	dimensions      int
}

var (
	_ capability.Generator      = (*Client)(nil)
	_ capability.Transcriber    = (*Client)(nil)
	_ capability.Synthesizer    = (*Client)(nil)
	_ capability.ImageGenerator = (*Client)(nil)
	_ memory.Embedder           = (*Client)(nil)
)

// Config selects the backend. APIKey selects the Gemini API; otherwise
// Project and Location select Vertex AI.
type Config struct {
	APIKey   string
	Project  string
	Location string
}

// Option configures a Client.
type Option func(*Client)

// WithGenerativeModel sets the model used for Generate and Transcribe.
func WithGenerativeModel(model string) Option {
	return func(c *Client) { c.generativeModel = model }
}

// WithSpeechModel sets the text-to-speech model.
func WithSpeechModel(model string) Option {
	return func(c *Client) { c.speechModel = model }
}

// WithImageModel sets the image model.
func WithImageModel(model string) Option {
	return func(c *Client) { c.imageModel = model }
}

// WithEmbeddingModel sets the embedding model and its output size. Empty or
// non-positive values keep the defaults.
func WithEmbeddingModel(model string, dims int) Option {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
		if dims > 0 {
			c.dimensions = dims
		}
	}
}

// WithVoice sets the prebuilt voice for speech.
func WithVoice(voice string) Option {
	return func(c *Client) { c.voice = voice }
}

// New creates a Client for cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cc := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return NewWithModels(client.Models, opts...), nil
}

// NewWithModels creates a Client on an existing model service.
func NewWithModels(models Models, opts ...Option) *Client {
	c := &Client{
		models:          models,
		generativeModel: DefaultGenerativeModel,
		speechModel:     DefaultSpeechModel,
		imageModel:      DefaultImageModel,
		embeddingModel:  DefaultEmbeddingModel,
		voice:           DefaultVoice,
		dimensions:      DefaultDimensions,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements capability.Generator.
func (c *Client) Generate(ctx context.Context, req capability.GenerateRequest) (*capability.GenerateResponse, error) {
	start := time.Now()

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == capability.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, "")
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := c.models.GenerateContent(ctx, c.generativeModel, contents, config)
	if err != nil {
		return nil, classify("generate", err)
	}

	out := &capability.GenerateResponse{
		Text:     responseText(resp),
		Model:    c.generativeModel,
		Duration: time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.Usage = capability.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// Transcribe implements capability.Transcriber.
func (c *Client) Transcribe(ctx context.Context, audio capability.Audio) (string, error) {
	mime := audio.MIMEType
	if mime == "" {
		mime = "audio/wav"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			{Text: transcribePrompt},
			{InlineData: &genai.Blob{Data: audio.Data, MIMEType: mime}},
		}, genai.RoleUser),
	}

	resp, err := c.models.GenerateContent(ctx, c.generativeModel, contents, nil)
	if err != nil {
		return "", classify("transcribe", err)
	}
	return responseText(resp), nil
}

// Synthesize implements capability.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, text string) (*capability.Audio, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.voice},
			},
		},
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := c.models.GenerateContent(ctx, c.speechModel, contents, config)
	if err != nil {
		return nil, classify("synthesize", err)
	}
	blob := firstBlob(resp)
	if blob == nil {
		return nil, capability.ErrEmptyResponse
	}
	return &capability.Audio{Data: blob.Data, MIMEType: blob.MIMEType}, nil
}

// GenerateImage implements capability.ImageGenerator.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*capability.Image, error) {
	resp, err := c.models.GenerateImages(ctx, c.imageModel, prompt, nil)
	if err != nil {
		return nil, classify("generate image", err)
	}
	if resp == nil {
		return nil, capability.ErrEmptyResponse
	}
	for _, gi := range resp.GeneratedImages {
		if gi != nil && gi.Image != nil && len(gi.Image.ImageBytes) > 0 {
			mime := gi.Image.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &capability.Image{Data: gi.Image.ImageBytes, MIMEType: mime}, nil
		}
	}
	return nil, capability.ErrEmptyResponse
}

// Embed implements memory.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := int32(c.dimensions)
	resp, err := c.models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, classify("embed", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, capability.ErrEmptyResponse
	}
	return resp.Embeddings[0].Values, nil
}

// Dimensions implements memory.Embedder.
func (c *Client) Dimensions() int {
	return c.dimensions
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func firstBlob(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}

// classify maps SDK errors onto serrors types. The upstream message is
// dropped.
func classify(op string, err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if code != 0 {
		return &serrors.UpstreamError{Provider: "gemini", Op: op, StatusCode: code}
	}
	return fmt.Errorf("gemini %s: %w", op, err)
}
