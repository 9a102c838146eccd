package capability

import (
	"context"
	"sync"
	"time"
)

// MockGenerator is a Generator for tests. Responses cycle in order.
type MockGenerator struct {
	mu        sync.Mutex
	responses []string
	index     int
	err       error
	delay     time.Duration
	fn        func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	calls     []GenerateRequest
}

// NewMockGenerator returns a MockGenerator answering with responses in turn.
func NewMockGenerator(responses ...string) *MockGenerator {
	if len(responses) == 0 {
		responses = []string{"mock response"}
	}
	return &MockGenerator{responses: responses}
}

// WithError makes every call fail with err.
func (m *MockGenerator) WithError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay delays every call by d, or until ctx is done.
func (m *MockGenerator) WithDelay(d time.Duration) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFunc answers every call with fn.
func (m *MockGenerator) WithFunc(fn func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	delay, err, fn := m.delay, m.err, m.fn
	text := m.responses[m.index%len(m.responses)]
	m.index++
	m.mu.Unlock()

	if err := sleep(ctx, delay); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &GenerateResponse{Text: text, Model: "mock"}, nil
}

// Calls returns the requests received so far.
func (m *MockGenerator) Calls() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateRequest(nil), m.calls...)
}

// CallCount returns the number of calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockTranscriber returns a fixed transcript.
type MockTranscriber struct {
	Text  string
	Err   error
	mu    sync.Mutex
	calls int
}

// Transcribe implements Transcriber.
func (m *MockTranscriber) Transcribe(_ context.Context, _ Audio) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.Text, m.Err
}

// CallCount returns the number of calls.
func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSynthesizer returns the text as audio bytes.
type MockSynthesizer struct {
	Err   error
	mu    sync.Mutex
	calls int
}

// Synthesize implements Synthesizer.
func (m *MockSynthesizer) Synthesize(_ context.Context, text string) (*Audio, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return &Audio{Data: []byte(text), MIMEType: "audio/wav"}, nil
}

// CallCount returns the number of calls.
func (m *MockSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockImageGenerator returns a tiny fixed PNG header.
type MockImageGenerator struct {
	Err   error
	mu    sync.Mutex
	calls []string
}

// GenerateImage implements ImageGenerator.
func (m *MockImageGenerator) GenerateImage(_ context.Context, prompt string) (*Image, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return &Image{Data: []byte("\x89PNG\r\n\x1a\n"), MIMEType: "image/png"}, nil
}

// Prompts returns the prompts received so far.
func (m *MockImageGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
