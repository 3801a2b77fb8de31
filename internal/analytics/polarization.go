package analytics

import (
	"math"
	"sort"

	"github.com/ppiankov/poldna/internal/model"
)

// polarizationScale maps a vector norm onto 0-100; √6 is one unit on every axis
var polarizationScale = 100 / math.Sqrt(model.AxisCount)

// ChamberMedian returns the per-axis median across all profiles
func ChamberMedian(profiles []model.Profile) model.Vector {
	var median model.Vector
	if len(profiles) == 0 {
		return median
	}
	values := make([]float64, len(profiles))
	for _, a := range model.Axes {
		for i, p := range profiles {
			values[i] = p.Axes[a]
		}
		sort.Float64s(values)
		n := len(values)
		if n%2 == 1 {
			median[a] = values[n/2]
		} else {
			median[a] = (values[n/2-1] + values[n/2]) / 2
		}
	}
	return median
}

// MeanVector averages profile positions; ok is false for an empty set
func MeanVector(profiles []model.Profile) (model.Vector, bool) {
	var mean model.Vector
	if len(profiles) == 0 {
		return mean, false
	}
	for _, p := range profiles {
		for _, a := range model.Axes {
			mean[a] += p.Axes[a]
		}
	}
	for _, a := range model.Axes {
		mean[a] /= float64(len(profiles))
	}
	return mean, true
}

// Polarization returns the signed per-axis offset of the party mean from the
// chamber median, and its norm scaled to 0-100.
func Polarization(partyProfiles []model.Profile, median model.Vector) (model.Vector, float64) {
	mean, ok := MeanVector(partyProfiles)
	if !ok {
		return model.Vector{}, 0
	}
	vec := mean.Sub(median)
	score := math.Min(100, vec.Norm()*polarizationScale)
	return vec, score
}
