package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/poldna/internal/logger"
)

// OllamaProvider categorizes with a local Ollama model in JSON mode
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	log        logger.Logger
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Only present when done
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

func ollamaErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(config, 60*time.Second), // local models load slowly
		config:     config,
		log:        logger.OrNop(config.Logger).Named("ollama"),
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks that the Ollama server answers its model listing
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	status, err := getStatus(ctx, p.httpClient, p.baseURL+"/api/tags")
	if err != nil {
		p.log.Warn(ctx, "Ollama availability check failed", logger.String("base_url", p.baseURL), logger.Error(err))
		return false
	}
	if status != http.StatusOK {
		p.log.Warn(ctx, "Ollama availability check failed", logger.Int("status", status), logger.String("base_url", p.baseURL))
		return false
	}
	return true
}

// Categorize classifies a vote title
func (p *OllamaProvider) Categorize(ctx context.Context, req CategorizeRequest) (*CategorizeResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Title)
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	if model == "" {
		return nil, errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	apiReq := ollamaRequest{
		Model:  model,
		Prompt: prompt,
		System: systemPrompt,
		Format: "json",
		Options: ollamaOptions{
			NumPredict: resolveMaxTokens(req.MaxTokens, p.config.MaxTokens),
		},
	}
	var resp ollamaResponse
	if err := postJSON(ctx, p.httpClient, p.baseURL+"/api/generate", nil, apiReq, &resp, ollamaErrorMessage); err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}

	raw := strings.TrimSpace(resp.Response)
	c, err := DecodeCategorization(raw)
	if err != nil {
		return nil, err
	}
	c.Provider = p.Name()
	c.Model = resp.Model

	// Some models report no counts; estimate at ~4 characters per token
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		tokens = (len(prompt) + len(raw)) / 4
	}

	return &CategorizeResponse{
		Categorization: c,
		Raw:            raw,
		Model:          resp.Model,
		TokensUsed:     tokens,
	}, nil
}
