package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for Client. Every request is recorded.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	mu       sync.Mutex
	requests []CompletionRequest
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "mock response"}, nil
}

// Requests returns a copy of every request received so far.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Script returns a CompleteFunc that answers successive calls with the
// given responses, repeating the last one once exhausted.
func Script(responses ...*CompletionResponse) func(context.Context, CompletionRequest) (*CompletionResponse, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, CompletionRequest) (*CompletionResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return &CompletionResponse{}, nil
		}
		r := responses[i]
		if i < len(responses)-1 {
			i++
		}
		return r, nil
	}
}
