// Package analytics derives party-level figures from profiles and votes:
// Rice-index cohesion, polarization against the chamber median, topic
// ownership and the pivot rollup.
package analytics

import (
	"math"

	"github.com/ppiankov/poldna/internal/model"
)

// Rice returns the Rice index |aye-nay|/(aye+nay) as a percentage.
// ok is false with fewer than two bloc voters, where the index is undefined.
func Rice(aye, nay int) (float64, bool) {
	total := aye + nay
	if total < 2 {
		return 0, false
	}
	return math.Abs(float64(aye-nay)) / float64(total) * 100, true
}

// Cohesion averages the Rice index of a party across every event where at
// least two members cast an aye or nay. Abstentions are not a bloc direction.
// events is the number of qualifying events; 0 means cohesion is unknown.
func Cohesion(members map[string]bool, snap *model.Snapshot, byEvent map[string][]model.VoteCast) (score float64, events int) {
	sum := 0.0
	for _, ev := range snap.Events {
		aye, nay := 0, 0
		for _, v := range byEvent[ev.ID] {
			if !members[v.LegislatorID] {
				continue
			}
			switch v.Type {
			case model.VoteAye:
				aye++
			case model.VoteNay:
				nay++
			}
		}
		if rice, ok := Rice(aye, nay); ok {
			sum += rice
			events++
		}
	}
	if events == 0 {
		return 0, 0
	}
	return sum / float64(events), events
}
