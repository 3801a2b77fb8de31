package dna

import (
	"math"

	"github.com/ppiankov/poldna/internal/model"
)

const (
	votingBlendWeight        = 0.6
	questionnaireBlendWeight = 0.4
)

// AxisRange is the population extent of one axis
type AxisRange struct {
	Min, Max float64
	N        int // Legislators with evidence on the axis
}

// Ranges computes per-axis min/max over legislators with evidence on that axis
func Ranges(raw map[string]RawScores) [model.AxisCount]AxisRange {
	var ranges [model.AxisCount]AxisRange
	for _, r := range raw {
		for _, a := range model.Axes {
			if r.Count[a] == 0 {
				continue
			}
			s := r.Score(a)
			rg := &ranges[a]
			if rg.N == 0 || s < rg.Min {
				rg.Min = s
			}
			if rg.N == 0 || s > rg.Max {
				rg.Max = s
			}
			rg.N++
		}
	}
	return ranges
}

// StretchValue maps value from [min,max] onto [-1,1]. A degenerate range yields 0.
func StretchValue(value, lo, hi float64) float64 {
	if hi-lo <= 0 || math.IsNaN(value) {
		return 0
	}
	out := ((value-lo)/(hi-lo))*2 - 1
	return math.Max(-1, math.Min(1, out))
}

// Stretch rescales every axis across the population to span [-1,1].
// Legislators without evidence on an axis get 0 on it. Values are relative to
// the population passed in and must be recomputed when it changes.
func Stretch(raw map[string]RawScores) map[string]model.Vector {
	ranges := Ranges(raw)
	out := make(map[string]model.Vector, len(raw))
	for id, r := range raw {
		var v model.Vector
		for _, a := range model.Axes {
			if r.Count[a] == 0 {
				continue
			}
			v[a] = StretchValue(r.Score(a), ranges[a].Min, ranges[a].Max)
		}
		out[id] = v
	}
	return out
}

// QuestionnaireScores accumulates promise values per axis
type QuestionnaireScores struct {
	Sum   [model.AxisCount]float64
	Count [model.AxisCount]int
}

// ScoreQuestionnaire averages a legislator's answers per axis.
// Answers off the 1..5 scale or outside the six axes are ignored.
func ScoreQuestionnaire(responses []model.CandidateResponse) QuestionnaireScores {
	var q QuestionnaireScores
	for _, r := range responses {
		axis, ok := r.Category.Axis()
		if !ok || !r.Valid() {
			continue
		}
		q.Sum[axis] += r.PromiseValue()
		q.Count[axis]++
	}
	return q
}

// Score returns the mean promise value on the axis, clamped to [-1,1]
func (q QuestionnaireScores) Score(a model.Axis) float64 {
	if q.Count[a] == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, q.Sum[a]/float64(q.Count[a])))
}

// Any reports whether any answer was usable
func (q QuestionnaireScores) Any() bool {
	for _, c := range q.Count {
		if c > 0 {
			return true
		}
	}
	return false
}

// Blend combines stretched voting scores with questionnaire scores per axis.
// Voting evidence dominates 60/40; questionnaire-only axes take the answer outright.
func Blend(voting model.Vector, votingCount [model.AxisCount]int, q QuestionnaireScores) model.Vector {
	var out model.Vector
	for _, a := range model.Axes {
		hasVotes := votingCount[a] > 0
		hasAnswers := q.Count[a] > 0
		switch {
		case hasVotes && hasAnswers:
			out[a] = votingBlendWeight*voting[a] + questionnaireBlendWeight*q.Score(a)
		case hasAnswers:
			out[a] = q.Score(a)
		case hasVotes:
			out[a] = voting[a]
		}
	}
	return out
}
