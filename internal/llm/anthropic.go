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

const (
	defaultAnthropicModel = "claude-3-5-haiku-20241022"
	anthropicVersion      = "2023-06-01"
)

// AnthropicProvider categorizes through the Anthropic Messages API
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
	log        logger.Logger
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

// text joins every text block of the reply
func (r *anthropicResponse) text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func anthropicErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Type == "" {
		return ""
	}
	return e.Error.Type + " - " + e.Error.Message
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicProvider{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(config, 30*time.Second),
		config:     config,
		log:        logger.OrNop(config.Logger).Named("anthropic"),
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable sends a minimal message to verify key and endpoint
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	ping := anthropicRequest{
		Model:     p.modelName(""),
		MaxTokens: 10,
		Messages:  []anthropicMessage{{Role: "user", Content: "Hi"}},
	}
	if _, err := p.send(ctx, ping); err != nil {
		p.log.Warn(ctx, "Anthropic API check failed", logger.Error(err))
		return false
	}
	return true
}

func (p *AnthropicProvider) modelName(requested string) string {
	switch {
	case requested != "":
		return requested
	case p.config.Model != "":
		return p.config.Model
	default:
		return defaultAnthropicModel
	}
}

// Categorize classifies a vote title
func (p *AnthropicProvider) Categorize(ctx context.Context, req CategorizeRequest) (*CategorizeResponse, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = BuildPrompt(req.Title)
	}

	resp, err := p.send(ctx, anthropicRequest{
		Model:     p.modelName(req.Model),
		MaxTokens: resolveMaxTokens(req.MaxTokens, p.config.MaxTokens),
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	raw := resp.text()
	if raw == "" {
		return nil, fmt.Errorf("no content in Anthropic response (stop reason %q)", resp.StopReason)
	}

	c, err := DecodeCategorization(raw)
	if err != nil {
		return nil, err
	}
	c.Provider = p.Name()
	c.Model = resp.Model

	return &CategorizeResponse{
		Categorization: c,
		Raw:            raw,
		Model:          resp.Model,
		TokensUsed:     resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func (p *AnthropicProvider) send(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var resp anthropicResponse
	if err := postJSON(ctx, p.httpClient, p.baseURL+"/v1/messages", headers, req, &resp, anthropicErrorMessage); err != nil {
		return nil, err
	}
	return &resp, nil
}
