package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/model"
)

var (
	// ErrInvalidCategorization means the provider answered but the answer
	// failed schema checks; nothing from it may be persisted
	ErrInvalidCategorization = errors.New("invalid categorization response")

	// ErrProviderDisabled is returned by NewProvider when no provider is configured
	ErrProviderDisabled = errors.New("llm provider disabled")
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Categorize classifies a vote title into a category and signed weight
	Categorize(ctx context.Context, req CategorizeRequest) (*CategorizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CategorizeRequest contains the input for vote categorization
type CategorizeRequest struct {
	// Title is the vote title text to classify
	Title string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// CategorizeResponse contains the validated classification
type CategorizeResponse struct {
	Categorization model.Categorization

	// Raw is the unparsed model output, kept for diagnostics
	Raw string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	Logger logger.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Model:     "",
		Timeout:   30,
		MaxTokens: defaultMaxTokens,
	}
}

const (
	defaultMaxTokens = 200
	systemPrompt     = "You classify parliamentary votes. Reply with a single JSON object and nothing else."
)

// resolveMaxTokens picks the request limit, then the configured one, then the default
func resolveMaxTokens(requested, configured int) int {
	switch {
	case requested > 0:
		return requested
	case configured > 0:
		return configured
	default:
		return defaultMaxTokens
	}
}

// BuildPrompt constructs the default categorization prompt for a vote title
func BuildPrompt(title string) string {
	return fmt.Sprintf(`Classify the following parliamentary vote.

Vote title: %q

Pick exactly one category:
- Economy: taxation, budgets, markets, labour, welfare spending
- Values: civil liberties, social and moral questions, religion, family
- Environment: climate, energy, nature protection, agriculture
- Regional: decentralisation, regional funding, local government
- International: foreign policy, trade agreements, supranational bodies
- Security: defence, policing, borders, intelligence
- Other: procedural or unclassifiable

Give a signed weight in [-1, 1] for how strongly a YES vote moves policy along that axis
(positive = progressive/expansive, negative = conservative/restrictive, 0 = neutral).

Respond ONLY with JSON: {"category": "<name>", "weight": <number>}`, title)
}

type categorizationPayload struct {
	Category *string  `json:"category"`
	Weight   *float64 `json:"weight"`
}

// stripCodeFence removes a surrounding markdown code fence, if any
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
