package capability

import (
	"context"
	"strings"
	"time"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
	serrors "github.com/randalmurphal/solace/pkg/solace/errors"
)

// guard runs fn through b, retrying retryable errors inside the breaker so a
// retried call counts once.
func guard[T any](ctx context.Context, name string, b *breaker.Breaker, retry serrors.RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	v, err := breaker.Execute(ctx, b, func(ctx context.Context) (T, error) {
		res := serrors.WithRetryContext(ctx, retry, fn)
		return res.Value, res.Err
	})
	if err != nil {
		var zero T
		return zero, &Error{Capability: name, Err: err}
	}
	return v, nil
}

// GuardedGenerator is a Generator behind a breaker.
type GuardedGenerator struct {
	inner   Generator
	breaker *breaker.Breaker
	retry   serrors.RetryConfig
}

// GuardGenerator wraps g. The breaker name is used in errors.
func GuardGenerator(g Generator, b *breaker.Breaker, retry serrors.RetryConfig) *GuardedGenerator {
	return &GuardedGenerator{inner: g, breaker: b, retry: retry}
}

// Generate implements Generator.
func (g *GuardedGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &Error{Capability: g.breaker.Name(), Err: &serrors.ValidationError{Field: "messages", Message: "at least one message is required"}}
	}
	return guard(ctx, g.breaker.Name(), g.breaker, g.retry, func(ctx context.Context) (*GenerateResponse, error) {
		start := time.Now()
		resp, err := g.inner.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil || strings.TrimSpace(resp.Text) == "" {
			return nil, ErrEmptyResponse
		}
		if resp.Duration == 0 {
			resp.Duration = time.Since(start)
		}
		return resp, nil
	})
}

// GuardedTranscriber is a Transcriber behind a breaker.
type GuardedTranscriber struct {
	inner   Transcriber
	breaker *breaker.Breaker
	retry   serrors.RetryConfig
}

// GuardTranscriber wraps t.
func GuardTranscriber(t Transcriber, b *breaker.Breaker, retry serrors.RetryConfig) *GuardedTranscriber {
	return &GuardedTranscriber{inner: t, breaker: b, retry: retry}
}

// Transcribe implements Transcriber.
func (g *GuardedTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", &Error{Capability: g.breaker.Name(), Err: &serrors.ValidationError{Field: "audio", Message: "empty audio"}}
	}
	return guard(ctx, g.breaker.Name(), g.breaker, g.retry, func(ctx context.Context) (string, error) {
		text, err := g.inner.Transcribe(ctx, audio)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
}

// GuardedSynthesizer is a Synthesizer behind a breaker.
type GuardedSynthesizer struct {
	inner   Synthesizer
	breaker *breaker.Breaker
	retry   serrors.RetryConfig
}

// GuardSynthesizer wraps s.
func GuardSynthesizer(s Synthesizer, b *breaker.Breaker, retry serrors.RetryConfig) *GuardedSynthesizer {
	return &GuardedSynthesizer{inner: s, breaker: b, retry: retry}
}

// Synthesize implements Synthesizer.
func (g *GuardedSynthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	return guard(ctx, g.breaker.Name(), g.breaker, g.retry, func(ctx context.Context) (*Audio, error) {
		audio, err := g.inner.Synthesize(ctx, text)
		if err != nil {
			return nil, err
		}
		if audio == nil || len(audio.Data) == 0 {
			return nil, ErrEmptyResponse
		}
		return audio, nil
	})
}

// GuardedImageGenerator is an ImageGenerator behind a breaker.
type GuardedImageGenerator struct {
	inner   ImageGenerator
	breaker *breaker.Breaker
	retry   serrors.RetryConfig
}

// GuardImageGenerator wraps ig.
func GuardImageGenerator(ig ImageGenerator, b *breaker.Breaker, retry serrors.RetryConfig) *GuardedImageGenerator {
	return &GuardedImageGenerator{inner: ig, breaker: b, retry: retry}
}

// GenerateImage implements ImageGenerator.
func (g *GuardedImageGenerator) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	return guard(ctx, g.breaker.Name(), g.breaker, g.retry, func(ctx context.Context) (*Image, error) {
		img, err := g.inner.GenerateImage(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if img == nil || len(img.Data) == 0 {
			return nil, ErrEmptyResponse
		}
		return img, nil
	})
}
