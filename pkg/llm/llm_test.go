package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScriptedMockProvider(t *testing.T) {
	provider := NewScriptedMockProvider("first", "second")
	ctx := context.Background()

	resp, err := provider.Chat(ctx, ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("expected 'first', got %q", resp.Content)
	}

	resp, err = provider.Chat(ctx, ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "second" {
		t.Errorf("expected 'second', got %q", resp.Content)
	}

	if _, err := provider.Chat(ctx, ChatRequest{}); err == nil {
		t.Error("expected error when script is exhausted")
	}
	if provider.CallCount != 3 {
		t.Errorf("expected 3 calls, got %d", provider.CallCount)
	}
}

func TestOllamaProvider_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message:         Message{Role: RoleAssistant, Content: "hello from ollama"},
			Done:            true,
			EvalCount:       12,
			PromptEvalCount: 30,
		})
	}))
	defer server.Close()

	provider := NewOllama(server.URL)
	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model:    "qwen2.5-coder",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hello from ollama" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 42 {
		t.Errorf("expected 42 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllama(server.URL)
	if _, err := provider.Chat(context.Background(), ChatRequest{Model: "missing"}); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestPricing(t *testing.T) {
	pricing := NewPricing(map[string]Rate{
		"claude-sonnet": {PromptPerMTok: 3.0, CompletionPerMTok: 15.0},
	})

	usage := Usage{PromptTokens: 1_000_000, CompletionTokens: 200_000}
	got := pricing.Cost("Claude-Sonnet", usage)
	want := 3.0 + 0.2*15.0
	if got != want {
		t.Errorf("cost = %v, want %v", got, want)
	}

	if pricing.Cost("unknown-local-model", usage) != 0 {
		t.Error("unknown models must cost zero")
	}
}

func TestMockProviderUsage(t *testing.T) {
	ctx := context.Background()

	resp, err := (&MockProvider{Response: "ok"}).Chat(ctx, ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("default usage = %+v, want 20 total tokens", resp.Usage)
	}

	custom := &MockProvider{
		Response: "ok",
		Usage:    Usage{PromptTokens: 300, CompletionTokens: 200},
	}
	resp, err = custom.Chat(ctx, ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Usage.TotalTokens != 500 {
		t.Errorf("usage = %+v, want total derived from parts", resp.Usage)
	}
}
