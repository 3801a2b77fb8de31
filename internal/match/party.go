package match

import "sort"

// PartyMatch is the per-party rollup of individual compatibilities
type PartyMatch struct {
	Party         string   `json:"party"`
	Compatibility float64  `json:"compatibility"` // Mean over members
	Members       []Result `json:"members"`       // Sorted by compatibility
}

// RollupByParty groups results by party, best party first
func RollupByParty(results []Result) []PartyMatch {
	groups := make(map[string][]Result)
	for _, r := range results {
		groups[r.Party] = append(groups[r.Party], r)
	}

	out := make([]PartyMatch, 0, len(groups))
	for party, members := range groups {
		sum := 0
		for _, m := range members {
			sum += m.Compatibility
		}
		sortResults(members)
		out = append(out, PartyMatch{
			Party:         party,
			Compatibility: float64(sum) / float64(len(members)),
			Members:       members,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Compatibility != out[j].Compatibility {
			return out[i].Compatibility > out[j].Compatibility
		}
		return out[i].Party < out[j].Party
	})
	return out
}
