// Package match ranks legislators by ideological similarity to a target vector.
package match

import (
	"errors"
	"math"
	"sort"

	"github.com/ppiankov/poldna/internal/model"
)

const (
	// StddevFloor keeps low-variance axes from exploding z-scores
	StddevFloor = 0.15

	zWeight   = 0.6
	rawWeight = 0.4

	// weakAxisWeight applies to axes the candidate has no evidence on
	weakAxisWeight = 0.5
)

var (
	// ZCap is the z-space distance treated as "completely different"
	ZCap = 3 * math.Sqrt(model.AxisCount)

	// RawCap is slightly beyond the raw-space diagonal so total opposites stay above 0%
	RawCap = 2 * math.Sqrt(model.AxisCount) * 1.05
)

// ErrUnknownLegislator is returned when the requested legislator has no profile
var ErrUnknownLegislator = errors.New("legislator has no profile")

// Result is one ranked candidate
type Result struct {
	LegislatorID  string   `json:"legislator_id"`
	Party         string   `json:"party"`
	Compatibility int      `json:"compatibility"` // 1..100
	ZDistance     float64  `json:"z_distance"`
	RawDistance   float64  `json:"raw_distance"`
	Pivot         *float64 `json:"pivot_score,omitempty"`
}

// Option configures a Matcher
type Option func(*Matcher)

// WithPivotScores attaches per-legislator pivot scores to results
func WithPivotScores(scores map[string]float64) Option {
	return func(m *Matcher) {
		m.pivots = scores
	}
}

// WithStats pins the z-score statistics instead of deriving them from the
// population. Ranking is then monotone: moving one candidate further from the
// target never improves their rank.
func WithStats(mean, std model.Vector) Option {
	return func(m *Matcher) {
		m.mean = mean
		for _, a := range model.Axes {
			m.std[a] = math.Max(std[a], StddevFloor)
		}
	}
}

// Matcher ranks a fixed population. It is read-only after construction and
// safe for concurrent use.
type Matcher struct {
	population []model.Profile
	mean       model.Vector
	std        model.Vector
	pivots     map[string]float64
}

// New builds a matcher over a population snapshot. Without WithStats the
// z-score statistics come from population itself.
func New(population []model.Profile, opts ...Option) *Matcher {
	m := &Matcher{population: population}
	m.mean, m.std = Stats(population)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns the per-axis population mean and floored standard deviation
func Stats(population []model.Profile) (mean, std model.Vector) {
	for i := range std {
		std[i] = StddevFloor
	}
	if len(population) == 0 {
		return mean, std
	}

	n := float64(len(population))
	for _, p := range population {
		for _, a := range model.Axes {
			mean[a] += p.Axes[a]
		}
	}
	for _, a := range model.Axes {
		mean[a] /= n
	}

	for _, a := range model.Axes {
		variance := 0.0
		for _, p := range population {
			d := p.Axes[a] - mean[a]
			variance += d * d
		}
		sd := math.Sqrt(variance / n)
		if sd > StddevFloor {
			std[a] = sd
		}
	}
	return mean, std
}

// Compatibility blends the two distances into a 1..100 score
func Compatibility(zDistance, rawDistance float64) int {
	zTerm := math.Max(0, 1-zDistance/ZCap)
	rawTerm := math.Max(0, 1-rawDistance/RawCap)
	score := (zWeight*zTerm + rawWeight*rawTerm) * 100
	if math.IsNaN(score) {
		return 1
	}
	return int(math.Max(1, math.Min(100, math.Round(score))))
}

// Match ranks every candidate against target, best first
func (m *Matcher) Match(target model.Vector) []Result {
	results := make([]Result, 0, len(m.population))
	for _, p := range m.population {
		z, raw := m.distances(target, p)
		r := Result{
			LegislatorID:  p.LegislatorID,
			Party:         p.Party,
			Compatibility: Compatibility(z, raw),
			ZDistance:     z,
			RawDistance:   raw,
		}
		if score, ok := m.pivots[p.LegislatorID]; ok {
			r.Pivot = &score
		}
		results = append(results, r)
	}

	sortResults(results)
	return results
}

// MatchLegislator ranks the population against an existing legislator's profile.
// The legislator appears in their own results with compatibility 100.
func (m *Matcher) MatchLegislator(id string) ([]Result, error) {
	for _, p := range m.population {
		if p.LegislatorID == id {
			return m.Match(p.Axes), nil
		}
	}
	return nil, ErrUnknownLegislator
}

func (m *Matcher) distances(target model.Vector, p model.Profile) (z, raw float64) {
	var zSum, rawSum float64
	for _, a := range model.Axes {
		w := 1.0
		if !p.HasAxis(a) {
			w = weakAxisWeight
		}
		d := target[a] - p.Axes[a]
		rawSum += w * d * d
		zd := d / m.std[a]
		zSum += w * zd * zd
	}
	return math.Sqrt(zSum), math.Sqrt(rawSum)
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Compatibility != results[j].Compatibility {
			return results[i].Compatibility > results[j].Compatibility
		}
		if results[i].ZDistance != results[j].ZDistance {
			return results[i].ZDistance < results[j].ZDistance
		}
		return results[i].LegislatorID < results[j].LegislatorID
	})
}
