package model

import (
	"sort"
	"time"
)

// Legislator is an elected member of the chamber
type Legislator struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Party  string `json:"party" yaml:"party"`   // Mutable on defection
	Active bool   `json:"active" yaml:"active"` // Inactive members are excluded from forecasts and party counts
}

// VotingEvent is one real-world roll-call vote
type VotingEvent struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Category    Category  `json:"category" yaml:"category"`
	Weight      *float64  `json:"signed_weight" yaml:"signed_weight,omitempty"` // nil until categorized
	Categorized bool      `json:"categorized" yaml:"categorized"`               // Backfilled by the categorizer
	AyeCount    int       `json:"aye_count" yaml:"aye_count"`
	NayCount    int       `json:"nay_count" yaml:"nay_count"`
	HeldAt      time.Time `json:"held_at" yaml:"held_at"`
}

// NeedsCategorization reports whether the categorizer should look at the event.
// Uncategorized and Other-tagged events qualify; force re-opens everything.
func (e VotingEvent) NeedsCategorization(force bool) bool {
	if force {
		return true
	}
	return !e.Categorized || e.Weight == nil || !e.Category.IsAxis()
}

// SignedWeight returns the event weight, 0 when unset
func (e VotingEvent) SignedWeight() float64 {
	if e.Weight == nil {
		return 0
	}
	return *e.Weight
}

// VoteType is how a legislator voted
type VoteType string

const (
	VoteAye     VoteType = "aye"
	VoteNay     VoteType = "nay"
	VoteAbstain VoteType = "abstain"
)

// Value maps the vote onto the signed scale used by every scorer
func (v VoteType) Value() float64 {
	switch v {
	case VoteAye:
		return 1
	case VoteNay:
		return -1
	default:
		return 0
	}
}

// VoteCast is a single legislator's vote on one event
type VoteCast struct {
	LegislatorID string   `json:"legislator_id" yaml:"legislator_id"`
	EventID      string   `json:"event_id" yaml:"event_id"`
	Type         VoteType `json:"vote_type" yaml:"vote_type"`
}

// CastVote is a VoteCast joined with its event
type CastVote struct {
	Type  VoteType
	Event VotingEvent
}

// Snapshot is a frozen, consistent read of the vote store. Every population
// statistic of a pass is computed from one snapshot.
type Snapshot struct {
	Legislators []Legislator
	Events      []VotingEvent
	Votes       []VoteCast
}

// EventIndex returns events keyed by id
func (s *Snapshot) EventIndex() map[string]VotingEvent {
	idx := make(map[string]VotingEvent, len(s.Events))
	for _, e := range s.Events {
		idx[e.ID] = e
	}
	return idx
}

// LegislatorIndex returns legislators keyed by id
func (s *Snapshot) LegislatorIndex() map[string]Legislator {
	idx := make(map[string]Legislator, len(s.Legislators))
	for _, l := range s.Legislators {
		idx[l.ID] = l
	}
	return idx
}

// VotesByLegislator joins every vote with its event, grouped by legislator.
// Votes that reference unknown events are dropped.
func (s *Snapshot) VotesByLegislator() map[string][]CastVote {
	events := s.EventIndex()
	out := make(map[string][]CastVote)
	for _, v := range s.Votes {
		ev, ok := events[v.EventID]
		if !ok {
			continue
		}
		out[v.LegislatorID] = append(out[v.LegislatorID], CastVote{Type: v.Type, Event: ev})
	}
	return out
}

// VotesByEvent groups vote casts by event id
func (s *Snapshot) VotesByEvent() map[string][]VoteCast {
	out := make(map[string][]VoteCast)
	for _, v := range s.Votes {
		out[v.EventID] = append(out[v.EventID], v)
	}
	return out
}

// PendingEvents returns events the categorizer should process, sorted by id
func (s *Snapshot) PendingEvents(force bool) []VotingEvent {
	var pending []VotingEvent
	for _, e := range s.Events {
		if e.NeedsCategorization(force) {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending
}
