package analytics

import (
	"math"
	"sort"

	"github.com/ppiankov/poldna/internal/model"
)

// Options tunes the party rollup
type Options struct {
	// PivotScores per legislator; members without an entry count as 0
	PivotScores map[string]float64

	// PivotSampleSize caps how many members feed the party pivot figure.
	// 0 uses the full membership.
	PivotSampleSize int
}

// SampleMembers picks a deterministic stride sample from sorted ids
func SampleMembers(ids []string, size int) []string {
	if size <= 0 || size >= len(ids) {
		return ids
	}
	out := make([]string, 0, size)
	stride := float64(len(ids)) / float64(size)
	for i := 0; i < size; i++ {
		out = append(out, ids[int(float64(i)*stride)])
	}
	return out
}

// PivotRollup averages member pivot scores over the sample, rounded to one decimal
func PivotRollup(ids []string, scores map[string]float64, sampleSize int) float64 {
	sample := SampleMembers(ids, sampleSize)
	if len(sample) == 0 {
		return 0
	}
	sum := 0.0
	for _, id := range sample {
		sum += scores[id]
	}
	return math.Round(sum/float64(len(sample))*10) / 10
}

// Compute builds one PartyAggregate per party with at least one active member,
// sorted by party name. Every figure derives from the given snapshot and profiles.
func Compute(snap *model.Snapshot, profiles []model.Profile, opts Options) []model.PartyAggregate {
	memberIDs := make(map[string][]string)
	for _, l := range snap.Legislators {
		if l.Active && l.Party != "" {
			memberIDs[l.Party] = append(memberIDs[l.Party], l.ID)
		}
	}

	profilesByParty := make(map[string][]model.Profile)
	for _, p := range profiles {
		profilesByParty[p.Party] = append(profilesByParty[p.Party], p)
	}

	median := ChamberMedian(profiles)
	byEvent := snap.VotesByEvent()

	parties := make([]string, 0, len(memberIDs))
	for party := range memberIDs {
		parties = append(parties, party)
	}
	sort.Strings(parties)

	out := make([]model.PartyAggregate, 0, len(parties))
	for _, party := range parties {
		ids := memberIDs[party]
		sort.Strings(ids)
		members := make(map[string]bool, len(ids))
		for _, id := range ids {
			members[id] = true
		}

		var partyProfiles []model.Profile
		for _, p := range profilesByParty[party] {
			if members[p.LegislatorID] {
				partyProfiles = append(partyProfiles, p)
			}
		}

		cohesion, cohesionEvents := Cohesion(members, snap, byEvent)
		vec, polarization := Polarization(partyProfiles, median)
		topics, owned := TopicOwnership(members, len(ids), snap)

		out = append(out, model.PartyAggregate{
			Party:              party,
			Cohesion:           cohesion,
			CohesionEvents:     cohesionEvents,
			Polarization:       polarization,
			PolarizationVector: vec,
			Pivot:              PivotRollup(ids, opts.PivotScores, opts.PivotSampleSize),
			TopicOwnership:     topics,
			OwnedCategory:      owned,
			MPCount:            len(ids),
		})
	}
	return out
}

// CohesionIndex maps party name to cohesion as a fraction in [0,1]
func CohesionIndex(aggregates []model.PartyAggregate) map[string]float64 {
	out := make(map[string]float64, len(aggregates))
	for _, a := range aggregates {
		out[a.Party] = a.Cohesion / 100
	}
	return out
}
