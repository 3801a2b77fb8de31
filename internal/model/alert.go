package model

import "time"

// Severity grades an integrity alert
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert flags a vote that contradicts a legislator's declared positions.
// Alerts are keyed by (LegislatorID, EventID).
type Alert struct {
	ID           string    `json:"id"`
	LegislatorID string    `json:"legislator_id"`
	EventID      string    `json:"event_id"`
	Category     Category  `json:"category"`
	PromiseValue float64   `json:"promise_value"`
	VoteValue    float64   `json:"vote_value"`
	Deviation    float64   `json:"deviation"`
	Severity     Severity  `json:"severity"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Categorization is the validated output of the categorizer
type Categorization struct {
	Category Category `json:"category"`
	Weight   float64  `json:"weight"`
	Source   string   `json:"source,omitempty"`   // llm, cache, fallback
	Provider string   `json:"provider,omitempty"` // openai, anthropic, ollama
	Model    string   `json:"model,omitempty"`
}

// FallbackCategorization is returned whenever the categorizer cannot answer
func FallbackCategorization() Categorization {
	return Categorization{Category: CategoryOther, Weight: 0, Source: "fallback"}
}

// ItemFailure is one per-item failure collected during a batch pass
type ItemFailure struct {
	Stage string `json:"stage"` // categorize, detect, ...
	ID    string `json:"id"`
	Error string `json:"error"`
}
