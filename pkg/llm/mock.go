package llm

import (
	"context"
	"sync"
)

// MockProvider is a configurable Provider for tests.
// Set the function fields to control behavior.
type MockProvider struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, returns an empty response and nil error.
	GenerateFunc func(ctx context.Context, req *Request) (*Response, error)

	// StreamChatFunc is called when StreamChat is invoked.
	// If nil, emits and returns "ok".
	StreamChatFunc func(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error)

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	mu              sync.Mutex
	generateCalls   int
	streamChatCalls int
	requests        []*Request
	chatRequests    []*ChatRequest
}

// NewMockProvider creates a mock that answers every Generate call with text.
func NewMockProvider(text string) *MockProvider {
	return &MockProvider{
		GenerateFunc: func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{Text: text, FinishReason: "STOP", Model: "mock-model"}, nil
		},
	}
}

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.generateCalls++
	m.requests = append(m.requests, req)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &Response{}, nil
}

// StreamChat implements Provider.
func (m *MockProvider) StreamChat(ctx context.Context, req *ChatRequest, onChunk func(string)) (string, error) {
	m.mu.Lock()
	m.streamChatCalls++
	m.chatRequests = append(m.chatRequests, req)
	fn := m.StreamChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req, onChunk)
	}
	if onChunk != nil {
		onChunk("ok")
	}
	return "ok", nil
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// GenerateCalls returns how many times Generate was invoked.
func (m *MockProvider) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// StreamChatCalls returns how many times StreamChat was invoked.
func (m *MockProvider) StreamChatCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamChatCalls
}

// Requests returns the Generate requests received so far.
func (m *MockProvider) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Request(nil), m.requests...)
}

// ChatRequests returns the StreamChat requests received so far.
func (m *MockProvider) ChatRequests() []*ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ChatRequest(nil), m.chatRequests...)
}

// Reset clears call tracking.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls = 0
	m.streamChatCalls = 0
	m.requests = nil
	m.chatRequests = nil
}

var _ Provider = (*MockProvider)(nil)
