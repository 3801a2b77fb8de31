// Package dna derives per-legislator ideological profiles from categorized
// votes: raw axis aggregation, population stretching and questionnaire blending.
package dna

import (
	"math"
	"time"

	"github.com/ppiankov/poldna/internal/model"
)

const (
	// MinControversy drops near-unanimous votes; they carry no discriminating signal
	MinControversy = 0.05

	// controversyBase is added to controversy so contested votes weigh up to 1.5x
	controversyBase = 0.5
)

// Controversy returns how evenly split an event was: 1 = perfectly split, 0 = unanimous.
// ok is false when nobody voted aye or nay.
func Controversy(aye, nay int) (float64, bool) {
	total := aye + nay
	if total <= 0 {
		return 0, false
	}
	diff := math.Abs(float64(aye - nay))
	return 1 - diff/float64(total), true
}

// Contribution scores a single vote. ok is false when the vote does not qualify:
// non-axis category, missing weight, no aye/nay total, or controversy below MinControversy.
func Contribution(v model.CastVote) (axis model.Axis, value float64, ok bool) {
	axis, isAxis := v.Event.Category.Axis()
	if !isAxis || v.Event.Weight == nil {
		return 0, 0, false
	}

	controversy, counted := Controversy(v.Event.AyeCount, v.Event.NayCount)
	if !counted || controversy < MinControversy {
		return 0, 0, false
	}

	value = v.Type.Value() * *v.Event.Weight * (controversyBase + controversy)
	return axis, value, true
}

// RawScores accumulates contributions per axis for one legislator
type RawScores struct {
	Sum      [model.AxisCount]float64
	Count    [model.AxisCount]int
	Votes    int       // Qualifying votes across all axes
	LastHeld time.Time // Latest held-at among qualifying votes
}

// Add folds one vote into the accumulator. It reports whether the vote qualified.
func (r *RawScores) Add(v model.CastVote) bool {
	axis, value, ok := Contribution(v)
	if !ok {
		return false
	}
	r.Sum[axis] += value
	r.Count[axis]++
	r.Votes++
	if v.Event.HeldAt.After(r.LastHeld) {
		r.LastHeld = v.Event.HeldAt
	}
	return true
}

// Score returns the mean contribution on the axis, 0 without evidence
func (r RawScores) Score(a model.Axis) float64 {
	if r.Count[a] == 0 {
		return 0
	}
	return r.Sum[a] / float64(r.Count[a])
}

// Qualifying reports whether at least one vote contributed on any axis
func (r RawScores) Qualifying() bool {
	return r.Votes > 0
}

// Aggregate converts a legislator's votes into raw axis scores
func Aggregate(votes []model.CastVote) RawScores {
	var r RawScores
	for _, v := range votes {
		r.Add(v)
	}
	return r
}
