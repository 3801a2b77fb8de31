package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/poldna/internal/model"
)

func anthropicReply(text string) anthropicResponse {
	return anthropicResponse{
		Content:    []anthropicContent{{Type: "text", Text: text}},
		Model:      "claude-3-5-haiku-20241022",
		StopReason: "end_turn",
		Usage:      anthropicUsage{InputTokens: 80, OutputTokens: 12},
	}
}

func TestAnthropicProvider_Categorize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != defaultAnthropicModel {
			t.Errorf("Expected default model, got %s", req.Model)
		}
		if req.MaxTokens != defaultMaxTokens {
			t.Errorf("Expected max tokens %d, got %d", defaultMaxTokens, req.MaxTokens)
		}

		_ = json.NewEncoder(w).Encode(anthropicReply("```json\n{\"category\":\"Security\",\"weight\":-0.7}\n```"))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Border surveillance act"})
	if err != nil {
		t.Fatalf("Categorize failed: %v", err)
	}

	c := resp.Categorization
	if c.Category != model.CategorySecurity || c.Weight != -0.7 {
		t.Errorf("Expected Security/-0.7, got %s/%v", c.Category, c.Weight)
	}
	if c.Provider != "anthropic" {
		t.Errorf("Expected provider anthropic, got %s", c.Provider)
	}
	if resp.TokensUsed != 92 {
		t.Errorf("Expected 92 tokens, got %d", resp.TokensUsed)
	}
}

func TestAnthropicProvider_Categorize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"type": "error",
			"error": map[string]interface{}{
				"type":    "rate_limit_error",
				"message": "Rate limit exceeded",
			},
		})
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})

	_, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Budget"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if errors.Is(err, ErrInvalidCategorization) {
		t.Error("API errors must not be reported as invalid categorizations")
	}
}

func TestAnthropicProvider_Categorize_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := anthropicReply("")
		resp.Content = nil
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if _, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Budget"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}

func TestAnthropicProvider_Categorize_InvalidAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(anthropicReply(`{"category":"Economy","weight":0.2} and some prose`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	_, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Budget"})
	if !errors.Is(err, ErrInvalidCategorization) {
		t.Fatalf("Expected ErrInvalidCategorization, got %v", err)
	}
}

func TestAnthropicProvider_Categorize_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if _, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Budget"}); err == nil {
		t.Fatal("Expected unmarshal error")
	}
}

func TestAnthropicProvider_Categorize_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := provider.Categorize(ctx, CategorizeRequest{Title: "Budget"}); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestAnthropicProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(anthropicReply("Hi"))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected provider to be available")
	}

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected provider to be unavailable")
	}
}
