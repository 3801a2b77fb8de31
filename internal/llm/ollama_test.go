package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/poldna/internal/model"
)

func TestOllamaProvider_Categorize_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("Expected json format, got %q", req.Format)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.1:8b",
			Response:        `{"category":"environment","weight":0.9}`,
			Done:            true,
			PromptEvalCount: 50,
			EvalCount:       10,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1:8b", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Wetland restoration fund"})
	if err != nil {
		t.Fatalf("Categorize failed: %v", err)
	}
	if resp.Categorization.Category != model.CategoryEnvironment {
		t.Errorf("Expected Environment, got %s", resp.Categorization.Category)
	}
	if resp.TokensUsed != 60 {
		t.Errorf("Expected 60 tokens, got %d", resp.TokensUsed)
	}
}

func TestOllamaProvider_Categorize_RequiresModel(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{BaseURL: "http://127.0.0.1:1", Timeout: 1})
	if _, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Budget"}); err == nil {
		t.Fatal("Expected error when no model is configured")
	}
}

func TestOllamaProvider_Categorize_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "model 'missing' not found"})
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "missing", Timeout: 5})
	_, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Budget"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestOllamaProvider_Categorize_OtherZeroesWeight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:    "mistral",
			Response: `{"category":"Other","weight":0.8}`,
			Done:     true,
		})
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "mistral", Timeout: 5})
	resp, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Adjournment motion"})
	if err != nil {
		t.Fatalf("Categorize failed: %v", err)
	}
	if resp.Categorization.Category != model.CategoryOther || resp.Categorization.Weight != 0 {
		t.Errorf("Expected Other/0, got %s/%v", resp.Categorization.Category, resp.Categorization.Weight)
	}
	if resp.TokensUsed == 0 {
		t.Error("Expected estimated token count when the server reports none")
	}
}

func TestOllamaProvider_Categorize_InvalidAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: "mistral", Response: "I think Economy.", Done: true})
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "mistral", Timeout: 5})
	_, err := provider.Categorize(context.Background(), CategorizeRequest{Title: "Budget"})
	if !errors.Is(err, ErrInvalidCategorization) {
		t.Fatalf("Expected ErrInvalidCategorization, got %v", err)
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Timeout: 5})
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected provider to be available")
	}

	server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected provider to be unavailable")
	}
}
