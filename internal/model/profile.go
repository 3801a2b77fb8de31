package model

import "time"

// Profile is the normalized ideological position of one legislator.
// A legislator without any qualifying evidence has no Profile at all.
type Profile struct {
	LegislatorID       string         `json:"legislator_id"`
	Party              string         `json:"party"`
	Axes               Vector         `json:"axes"`       // Stretched scores, each in [-1,1]
	AxisVotes          [AxisCount]int `json:"axis_votes"` // Evidence count per axis (votes + answers)
	TotalVotesAnalyzed int            `json:"total_votes_analyzed"`
	Source             ProfileSource  `json:"source"`
	LastUpdated        time.Time      `json:"last_updated"` // Latest held-at of the evidence used
}

// HasAxis reports whether any evidence backs the axis score
func (p Profile) HasAxis(a Axis) bool {
	return p.AxisVotes[a] > 0
}

// ProfileSource records which evidence produced a profile
type ProfileSource string

const (
	SourceVoting        ProfileSource = "voting"
	SourceQuestionnaire ProfileSource = "questionnaire"
	SourceBlended       ProfileSource = "blended"
)

// CandidateResponse is one pre-election questionnaire answer
type CandidateResponse struct {
	LegislatorID string   `json:"legislator_id" yaml:"legislator_id"`
	Question     string   `json:"question" yaml:"question"`             // Upsert key together with LegislatorID
	Value        int      `json:"response_value" yaml:"response_value"` // 1 (agree) .. 5 (disagree)
	Category     Category `json:"category" yaml:"category"`
	Weight       float64  `json:"weight" yaml:"weight"`
}

// PromiseValue maps the answer onto [-1,1]: 1 → +1, 3 → 0, 5 → -1, scaled by weight
func (r CandidateResponse) PromiseValue() float64 {
	return float64(3-r.Value) / 2 * r.Weight
}

// Valid reports whether the answer is on the 1..5 scale
func (r CandidateResponse) Valid() bool {
	return r.Value >= 1 && r.Value <= 5
}

// TopicIntensity is a party's activity in one category
type TopicIntensity struct {
	Category  Category `json:"category"`
	Votes     int      `json:"votes"`
	Intensity float64  `json:"intensity"` // votes / member count
}

// PartyAggregate is derived party-level analytics; recomputable, never authoritative
type PartyAggregate struct {
	Party              string           `json:"party"`
	Cohesion           float64          `json:"cohesion_score"` // Mean Rice index, 0-100
	CohesionEvents     int              `json:"cohesion_events"`
	Polarization       float64          `json:"polarization_score"`
	PolarizationVector Vector           `json:"polarization_vector"` // Party mean minus chamber median
	Pivot              float64          `json:"pivot_score"`
	TopicOwnership     []TopicIntensity `json:"topic_ownership"`
	OwnedCategory      Category         `json:"owned_category,omitempty"`
	MPCount            int              `json:"mp_count"`
}
