package provider

import (
	"context"
	"sync"
)

// MockProvider is a scripted provider for testing. Safe for concurrent use.
type MockProvider struct {
	mu sync.Mutex

	// Transform produces the result for each input text. Defaults to
	// wrapping the text in brackets so transformed output is visible.
	Transform func(req Request, text string) string

	// FailuresRemaining makes the next N submissions fail with FailErr
	// before the provider starts succeeding.
	FailuresRemaining int

	// FailErr is the error returned while FailuresRemaining > 0.
	FailErr error

	callCount   int
	lastRequest *Request
}

// NewMockProvider creates a mock provider with the default transform.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Transform: func(_ Request, text string) string {
			return "[" + text + "]"
		},
	}
}

// NewEchoProvider creates a mock provider that returns every text unchanged.
func NewEchoProvider() *MockProvider {
	return &MockProvider{
		Transform: func(_ Request, text string) string {
			return text
		},
	}
}

// Submit returns one transformed text per input, or the scripted failure.
func (m *MockProvider) Submit(_ context.Context, req Request) (*Completion, error) {
	m.mu.Lock()
	m.callCount++
	reqCopy := req
	m.lastRequest = &reqCopy

	if m.FailuresRemaining > 0 {
		m.FailuresRemaining--
		err := m.FailErr
		m.mu.Unlock()
		return nil, err
	}
	transform := m.Transform
	m.mu.Unlock()

	texts := make([]string, len(req.Texts))
	tokensIn, tokensOut := 0, 0
	for i, text := range req.Texts {
		texts[i] = transform(req, text)
		tokensIn += estimateTokens(text)
		tokensOut += estimateTokens(texts[i])
	}

	return &Completion{
		Texts:     texts,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}

// CallCount returns the number of Submit calls so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request received.
func (m *MockProvider) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Reset resets the call count and last request.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastRequest = nil
}

// estimateTokens approximates token usage at four characters per token.
func estimateTokens(text string) int {
	return len(text)/4 + 1
}

// Verify MockProvider implements Provider
var _ Provider = (*MockProvider)(nil)
