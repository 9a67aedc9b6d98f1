package llm

import (
	"context"
	"fmt"
)

// MockProvider returns a canned reply for tests. The zero value answers with
// empty content and a small default usage; set Usage to model a specific
// token bill, or ChatFunc to take over the call entirely.
type MockProvider struct {
	Response string
	Usage    Usage
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	usage := m.Usage
	if usage == (Usage{}) {
		usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return &ChatResponse{Content: m.Response, Usage: usage}, nil
}

// FailingMockProvider rejects every chat call, standing in for an agent
// backend that is unreachable.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if f.Err == nil {
		return nil, fmt.Errorf("provider unavailable")
	}
	return nil, f.Err
}
