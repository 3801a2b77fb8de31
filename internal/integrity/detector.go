// Package integrity compares votes against declared pre-election positions.
package integrity

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/poldna/internal/model"
)

const (
	// MinSignal is the minimum |weight| for an event to be checked
	MinSignal = 0.2

	// MediumThreshold and HighThreshold bound the alert bands: (1.2, 1.6] is
	// medium, above 1.6 is high.
	MediumThreshold = 1.2
	HighThreshold   = 1.6

	pivotHalfLife = 5.0
)

// alertNamespace scopes deterministic alert ids
var alertNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://poldna/alerts"))

// AlertID derives a stable id for a (legislator, event) pair
func AlertID(legislatorID, eventID string) string {
	return uuid.NewSHA1(alertNamespace, []byte(legislatorID+"|"+eventID)).String()
}

// Deviation returns |promise - vote|, bounded in [0,2] for inputs in [-1,1]
func Deviation(promise, vote float64) float64 {
	return math.Abs(promise - vote)
}

// Classify maps a deviation onto a severity. ok is false below the alert band.
func Classify(deviation float64) (model.Severity, bool) {
	switch {
	case deviation > HighThreshold:
		return model.SeverityHigh, true
	case deviation > MediumThreshold:
		return model.SeverityMedium, true
	default:
		return "", false
	}
}

// AveragePromise averages promise values of answers in category, clamped to [-1,1].
// ok is false when no valid answer matches.
func AveragePromise(responses []model.CandidateResponse, category model.Category) (float64, bool) {
	sum, n := 0.0, 0
	for _, r := range responses {
		if r.Category != category || !r.Valid() {
			continue
		}
		sum += r.PromiseValue()
		n++
	}
	if n == 0 {
		return 0, false
	}
	return math.Max(-1, math.Min(1, sum/float64(n))), true
}

// Detector checks single events for promise deviations
type Detector struct {
	responses map[string][]model.CandidateResponse
	now       func() time.Time
}

// Option configures a Detector
type Option func(*Detector)

// WithClock overrides the detection timestamp source
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector indexes questionnaire answers by legislator
func NewDetector(responses []model.CandidateResponse, opts ...Option) *Detector {
	d := &Detector{
		responses: make(map[string][]model.CandidateResponse),
		now:       time.Now,
	}
	for _, r := range responses {
		d.responses[r.LegislatorID] = append(d.responses[r.LegislatorID], r)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Checkable reports whether an event carries a strong enough axis signal
func Checkable(ev model.VotingEvent) bool {
	return ev.Category.IsAxis() && ev.Weight != nil && math.Abs(*ev.Weight) >= MinSignal
}

// Detect returns alerts for every vote on ev that contradicts the voter's
// answers in the same category. Abstentions and voters without answers are skipped.
func (d *Detector) Detect(ev model.VotingEvent, votes []model.VoteCast) []model.Alert {
	if !Checkable(ev) {
		return nil
	}

	var alerts []model.Alert
	detectedAt := d.now().UTC()
	for _, v := range votes {
		if v.EventID != ev.ID || v.Type == model.VoteAbstain {
			continue
		}
		promise, ok := AveragePromise(d.responses[v.LegislatorID], ev.Category)
		if !ok {
			continue
		}
		voteValue := v.Type.Value()
		deviation := Deviation(promise, voteValue)
		severity, flagged := Classify(deviation)
		if !flagged {
			continue
		}
		alerts = append(alerts, model.Alert{
			ID:           AlertID(v.LegislatorID, ev.ID),
			LegislatorID: v.LegislatorID,
			EventID:      ev.ID,
			Category:     ev.Category,
			PromiseValue: promise,
			VoteValue:    voteValue,
			Deviation:    deviation,
			Severity:     severity,
			DetectedAt:   detectedAt,
		})
	}
	return alerts
}

// PivotScore summarizes a legislator's alert history on a 0-100 scale.
// High alerts count 1, medium 0.5; the curve saturates toward 100.
func PivotScore(alerts []model.Alert) float64 {
	w := 0.0
	for _, a := range alerts {
		switch a.Severity {
		case model.SeverityHigh:
			w++
		case model.SeverityMedium:
			w += 0.5
		}
	}
	if w == 0 {
		return 0
	}
	return math.Round(100*w/(w+pivotHalfLife)*10) / 10
}

// PivotScores groups alerts by legislator and scores each
func PivotScores(alerts []model.Alert) map[string]float64 {
	byLegislator := make(map[string][]model.Alert)
	for _, a := range alerts {
		byLegislator[a.LegislatorID] = append(byLegislator[a.LegislatorID], a)
	}
	out := make(map[string]float64, len(byLegislator))
	for id, list := range byLegislator {
		out[id] = PivotScore(list)
	}
	return out
}
