// Package memory is an in-process store backend for tests and one-shot runs
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store"
)

type published struct {
	profiles []model.Profile
	byID     map[string]model.Profile
	parties  []model.PartyAggregate
}

type voteKey struct {
	legislator, event string
}

// Store keeps everything in maps. Published output is swapped atomically so
// readers never observe a partially written pass.
type Store struct {
	mu          sync.RWMutex
	legislators map[string]model.Legislator
	events      map[string]model.VotingEvent
	votes       map[voteKey]model.VoteCast
	voteOrder   []voteKey
	responses   map[voteKey]model.CandidateResponse
	alerts      map[voteKey]model.Alert

	current atomic.Pointer[published]
}

// New creates an empty store
func New() *Store {
	s := &Store{
		legislators: make(map[string]model.Legislator),
		events:      make(map[string]model.VotingEvent),
		votes:       make(map[voteKey]model.VoteCast),
		responses:   make(map[voteKey]model.CandidateResponse),
		alerts:      make(map[voteKey]model.Alert),
	}
	s.current.Store(&published{byID: map[string]model.Profile{}})
	return s
}

// Snapshot returns copies sorted by id so passes are reproducible
func (s *Store) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.Snapshot{
		Legislators: make([]model.Legislator, 0, len(s.legislators)),
		Events:      make([]model.VotingEvent, 0, len(s.events)),
		Votes:       make([]model.VoteCast, 0, len(s.voteOrder)),
	}
	for _, l := range s.legislators {
		snap.Legislators = append(snap.Legislators, l)
	}
	for _, e := range s.events {
		snap.Events = append(snap.Events, copyEvent(e))
	}
	for _, k := range s.voteOrder {
		snap.Votes = append(snap.Votes, s.votes[k])
	}

	sort.Slice(snap.Legislators, func(i, j int) bool { return snap.Legislators[i].ID < snap.Legislators[j].ID })
	sort.Slice(snap.Events, func(i, j int) bool { return snap.Events[i].ID < snap.Events[j].ID })
	return snap, nil
}

func (s *Store) Event(ctx context.Context, id string) (model.VotingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.VotingEvent{}, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	return copyEvent(e), nil
}

func (s *Store) UpsertLegislators(ctx context.Context, legislators []model.Legislator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range legislators {
		s.legislators[l.ID] = l
	}
	return nil
}

func (s *Store) UpsertEvents(ctx context.Context, events []model.VotingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if prev, ok := s.events[e.ID]; ok {
			// category data belongs to the categorizer once stored
			prev.Title = e.Title
			prev.AyeCount = e.AyeCount
			prev.NayCount = e.NayCount
			prev.HeldAt = e.HeldAt
			s.events[e.ID] = prev
			continue
		}
		if e.Category == "" {
			e.Category = model.CategoryOther
		}
		s.events[e.ID] = copyEvent(e)
	}
	return nil
}

func (s *Store) AppendVotes(ctx context.Context, votes []model.VoteCast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range votes {
		k := voteKey{v.LegislatorID, v.EventID}
		if _, exists := s.votes[k]; exists {
			continue
		}
		s.votes[k] = v
		s.voteOrder = append(s.voteOrder, k)
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, eventID string, c model.Categorization, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return false, fmt.Errorf("event %s: %w", eventID, store.ErrNotFound)
	}
	if !store.CanUpdateCategory(e, force) {
		return false, nil
	}
	w := c.Weight
	e.Category = c.Category
	e.Weight = &w
	e.Categorized = true
	s.events[eventID] = e
	return true, nil
}

func (s *Store) Publish(ctx context.Context, profiles []model.Profile, parties []model.PartyAggregate) error {
	p := &published{
		profiles: append([]model.Profile(nil), profiles...),
		byID:     make(map[string]model.Profile, len(profiles)),
		parties:  append([]model.PartyAggregate(nil), parties...),
	}
	for _, pr := range profiles {
		p.byID[pr.LegislatorID] = pr
	}
	s.current.Store(p)
	return nil
}

func (s *Store) Profiles(ctx context.Context) ([]model.Profile, error) {
	return append([]model.Profile(nil), s.current.Load().profiles...), nil
}

func (s *Store) Profile(ctx context.Context, legislatorID string) (model.Profile, error) {
	p, ok := s.current.Load().byID[legislatorID]
	if !ok {
		return model.Profile{}, fmt.Errorf("profile %s: %w", legislatorID, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) PartyAggregates(ctx context.Context) ([]model.PartyAggregate, error) {
	return append([]model.PartyAggregate(nil), s.current.Load().parties...), nil
}

func (s *Store) UpsertResponses(ctx context.Context, responses []model.CandidateResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range responses {
		s.responses[voteKey{r.LegislatorID, r.Question}] = r
	}
	return nil
}

func (s *Store) Responses(ctx context.Context) ([]model.CandidateResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CandidateResponse, 0, len(s.responses))
	for _, r := range s.responses {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LegislatorID != out[j].LegislatorID {
			return out[i].LegislatorID < out[j].LegislatorID
		}
		return out[i].Question < out[j].Question
	})
	return out, nil
}

func (s *Store) UpsertAlerts(ctx context.Context, alerts []model.Alert) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for _, a := range alerts {
		k := voteKey{a.LegislatorID, a.EventID}
		if prev, ok := s.alerts[k]; ok {
			a.ID = prev.ID
			a.DetectedAt = prev.DetectedAt
		} else {
			created++
		}
		s.alerts[k] = a
	}
	return created, nil
}

func (s *Store) Alerts(ctx context.Context) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LegislatorID != out[j].LegislatorID {
			return out[i].LegislatorID < out[j].LegislatorID
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

func (s *Store) Close() error { return nil }

func copyEvent(e model.VotingEvent) model.VotingEvent {
	if e.Weight != nil {
		w := *e.Weight
		e.Weight = &w
	}
	return e
}

var _ store.Store = (*Store)(nil)
