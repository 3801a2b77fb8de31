package analytics

import "github.com/ppiankov/poldna/internal/model"

// TopicOwnership counts member votes per real category and divides by member
// count. The owned category has the highest intensity; ties go to the earlier
// axis. Owned is empty when the party cast no categorized votes.
func TopicOwnership(members map[string]bool, memberCount int, snap *model.Snapshot) ([]model.TopicIntensity, model.Category) {
	events := snap.EventIndex()

	var counts [model.AxisCount]int
	for _, v := range snap.Votes {
		if !members[v.LegislatorID] {
			continue
		}
		ev, ok := events[v.EventID]
		if !ok {
			continue
		}
		if axis, ok := ev.Category.Axis(); ok {
			counts[axis]++
		}
	}

	topics := make([]model.TopicIntensity, 0, model.AxisCount)
	var owned model.Category
	best := 0.0
	for _, a := range model.Axes {
		intensity := 0.0
		if memberCount > 0 {
			intensity = float64(counts[a]) / float64(memberCount)
		}
		topics = append(topics, model.TopicIntensity{
			Category:  a.Category(),
			Votes:     counts[a],
			Intensity: intensity,
		})
		if counts[a] > 0 && intensity > best {
			best = intensity
			owned = a.Category()
		}
	}
	return topics, owned
}
