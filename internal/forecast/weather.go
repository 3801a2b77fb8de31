// Package forecast simulates a pending vote from profiles and party discipline.
package forecast

import (
	"errors"
	"math"
	"sort"

	"github.com/ppiankov/poldna/internal/model"
)

const (
	baseProbability = 0.5
	axisInfluence   = 0.4

	ayeThreshold = 0.55
	nayThreshold = 0.45

	// RebelCohesionCeiling suppresses rebels in highly disciplined parties
	RebelCohesionCeiling = 0.9
	rebelScale           = 80

	sunnyMargin  = 30
	stormyMargin = 15
)

// ErrNoAxis means the event's category maps to no axis; no prediction is available
var ErrNoAxis = errors.New("category has no ideological axis")

// Weather is the categorical outlook of a vote
type Weather string

const (
	Sunny  Weather = "sunny"
	Cloudy Weather = "cloudy"
	Stormy Weather = "stormy"
)

// ClassifyWeather labels a tally: sunny when aye leads by more than 30,
// stormy when the margin is under 15, cloudy otherwise.
func ClassifyWeather(aye, nay int) Weather {
	margin := aye - nay
	switch {
	case margin > sunnyMargin && aye > nay:
		return Sunny
	case absInt(margin) < stormyMargin:
		return Stormy
	default:
		return Cloudy
	}
}

// Rebel is a legislator likely to break with their party line
type Rebel struct {
	LegislatorID string  `json:"legislator_id"`
	Party        string  `json:"party"`
	AxisScore    float64 `json:"axis_score"`
	Probability  int     `json:"probability"` // round(|axis| * 80)
}

// Prediction is the simulated outcome of one vote
type Prediction struct {
	EventID   string         `json:"event_id,omitempty"`
	Category  model.Category `json:"category"`
	Aye       int            `json:"aye"`
	Nay       int            `json:"nay"`
	Undecided int            `json:"undecided"`
	Margin    int            `json:"margin"`
	Weather   Weather        `json:"weather"`
	Rebels    []Rebel        `json:"rebels"`
}

// Request describes the vote to simulate
type Request struct {
	EventID  string
	Category model.Category
	Weight   *float64 // Negative weights invert personal stance

	// PartyLine overrides the coalition default per party (true = aye)
	PartyLine map[string]bool
}

// Engine is read-only after construction and safe for concurrent use
type Engine struct {
	legislators []model.Legislator
	profiles    map[string]model.Profile
	cohesion    map[string]float64
	coalition   map[string]bool
}

// NewEngine snapshots the inputs of a forecast. cohesion is per party in [0,1];
// coalition parties default to voting aye, everyone else nay.
func NewEngine(legislators []model.Legislator, profiles []model.Profile, cohesion map[string]float64, coalition []string) *Engine {
	e := &Engine{
		legislators: legislators,
		profiles:    make(map[string]model.Profile, len(profiles)),
		cohesion:    cohesion,
		coalition:   make(map[string]bool, len(coalition)),
	}
	for _, p := range profiles {
		e.profiles[p.LegislatorID] = p
	}
	for _, party := range coalition {
		e.coalition[party] = true
	}
	return e
}

// RequestFor builds a request from a stored event
func RequestFor(ev model.VotingEvent) Request {
	return Request{EventID: ev.ID, Category: ev.Category, Weight: ev.Weight}
}

// Probability blends personal lean with the party line, weighted by cohesion
func Probability(axisScore, cohesion float64, lineAye bool) float64 {
	p := baseProbability + axisScore*axisInfluence
	corrected := p * (1 - cohesion)
	if lineAye {
		corrected += cohesion
	}
	return corrected
}

// Predict tallies every active legislator. Each axis score enters Probability
// as prob_aye = 0.5 + score*0.4, with the score's sign flipped first when the
// event weight is negative, so a positive lean then pulls toward nay. It
// returns ErrNoAxis for Other.
func (e *Engine) Predict(req Request) (Prediction, error) {
	axis, ok := req.Category.Axis()
	if !ok {
		return Prediction{}, ErrNoAxis
	}

	direction := 1.0
	if req.Weight != nil && *req.Weight < 0 {
		direction = -1
	}

	pred := Prediction{EventID: req.EventID, Category: req.Category, Rebels: []Rebel{}}
	for _, l := range e.legislators {
		if !l.Active {
			continue
		}

		score := 0.0
		if p, ok := e.profiles[l.ID]; ok {
			score = p.Axes[axis] * direction
		}
		cohesion := clamp01(e.cohesion[l.Party])
		lineAye := e.lineAye(l.Party, req.PartyLine)

		switch prob := Probability(score, cohesion, lineAye); {
		case prob > ayeThreshold:
			pred.Aye++
		case prob < nayThreshold:
			pred.Nay++
		default:
			pred.Undecided++
		}

		opposes := (lineAye && score < 0) || (!lineAye && score > 0)
		if opposes && cohesion < RebelCohesionCeiling {
			pred.Rebels = append(pred.Rebels, Rebel{
				LegislatorID: l.ID,
				Party:        l.Party,
				AxisScore:    score,
				Probability:  int(math.Round(math.Abs(score) * rebelScale)),
			})
		}
	}

	sort.Slice(pred.Rebels, func(i, j int) bool {
		if pred.Rebels[i].Probability != pred.Rebels[j].Probability {
			return pred.Rebels[i].Probability > pred.Rebels[j].Probability
		}
		return pred.Rebels[i].LegislatorID < pred.Rebels[j].LegislatorID
	})

	pred.Margin = pred.Aye - pred.Nay
	pred.Weather = ClassifyWeather(pred.Aye, pred.Nay)
	return pred, nil
}

func (e *Engine) lineAye(party string, overrides map[string]bool) bool {
	if line, ok := overrides[party]; ok {
		return line
	}
	return e.coalition[party]
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
