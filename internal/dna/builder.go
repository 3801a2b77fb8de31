package dna

import (
	"sort"

	"github.com/ppiankov/poldna/internal/model"
)

// BuildProfiles runs aggregation, stretching and blending over one frozen snapshot.
//
// Legislators with neither a qualifying vote nor a usable questionnaire answer
// get no profile, so "no data" stays distinguishable from a neutral position.
// The result is sorted by legislator id and depends only on its inputs.
func BuildProfiles(snap *model.Snapshot, responses []model.CandidateResponse) []model.Profile {
	legislators := snap.LegislatorIndex()

	raw := make(map[string]RawScores)
	for id, votes := range snap.VotesByLegislator() {
		if _, known := legislators[id]; !known {
			continue
		}
		if r := Aggregate(votes); r.Qualifying() {
			raw[id] = r
		}
	}

	answers := make(map[string][]model.CandidateResponse)
	for _, r := range responses {
		answers[r.LegislatorID] = append(answers[r.LegislatorID], r)
	}

	stretched := Stretch(raw)

	var profiles []model.Profile
	for id, leg := range legislators {
		r, hasVotes := raw[id]
		q := ScoreQuestionnaire(answers[id])
		hasAnswers := q.Any()
		if !hasVotes && !hasAnswers {
			continue
		}

		p := model.Profile{
			LegislatorID:       id,
			Party:              leg.Party,
			Axes:               Blend(stretched[id], r.Count, q),
			TotalVotesAnalyzed: r.Votes,
			LastUpdated:        r.LastHeld,
		}
		for _, a := range model.Axes {
			p.AxisVotes[a] = r.Count[a] + q.Count[a]
		}

		switch {
		case hasVotes && hasAnswers:
			p.Source = model.SourceBlended
		case hasVotes:
			p.Source = model.SourceVoting
		default:
			p.Source = model.SourceQuestionnaire
		}

		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].LegislatorID < profiles[j].LegislatorID
	})
	return profiles
}
