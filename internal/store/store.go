// Package store defines the persistence contracts of the engine. Backends
// live in the memory, sqlite and postgres subpackages.
package store

import (
	"context"
	"errors"

	"github.com/ppiankov/poldna/internal/model"
)

// ErrNotFound is returned when a keyed lookup has no row
var ErrNotFound = errors.New("not found")

// VoteStore holds legislators, events and vote casts. The engine only
// writes category/weight backfills; everything else arrives through imports.
type VoteStore interface {
	// Snapshot returns a consistent read of every legislator, event and vote
	Snapshot(ctx context.Context) (*model.Snapshot, error)

	Event(ctx context.Context, id string) (model.VotingEvent, error)

	UpsertLegislators(ctx context.Context, legislators []model.Legislator) error
	UpsertEvents(ctx context.Context, events []model.VotingEvent) error

	// AppendVotes inserts casts, ignoring any (legislator, event) pair already recorded
	AppendVotes(ctx context.Context, votes []model.VoteCast) error

	// UpdateCategory backfills an event's category and weight. It is a no-op
	// returning false when the event is already categorized on a real axis
	// and force is unset.
	UpdateCategory(ctx context.Context, eventID string, c model.Categorization, force bool) (bool, error)
}

// ProfileStore holds the published output of a batch pass
type ProfileStore interface {
	// Publish replaces all profiles and party aggregates in one atomic step.
	// Readers see either the previous pass or the new one, never a mix.
	Publish(ctx context.Context, profiles []model.Profile, parties []model.PartyAggregate) error

	Profiles(ctx context.Context) ([]model.Profile, error)
	Profile(ctx context.Context, legislatorID string) (model.Profile, error)
	PartyAggregates(ctx context.Context) ([]model.PartyAggregate, error)
}

// ResponseStore holds questionnaire answers keyed by (legislator, question)
type ResponseStore interface {
	UpsertResponses(ctx context.Context, responses []model.CandidateResponse) error
	Responses(ctx context.Context) ([]model.CandidateResponse, error)
}

// AlertSink upserts integrity alerts keyed by (legislator, event)
type AlertSink interface {
	// UpsertAlerts returns how many alerts were new. Existing alerts keep
	// their id and first detection time.
	UpsertAlerts(ctx context.Context, alerts []model.Alert) (created int, err error)
	Alerts(ctx context.Context) ([]model.Alert, error)
}

// Store is a backend implementing every contract
type Store interface {
	VoteStore
	ProfileStore
	ResponseStore
	AlertSink
	Close() error
}

// CanUpdateCategory applies the backfill-once rule shared by all backends
func CanUpdateCategory(ev model.VotingEvent, force bool) bool {
	return force || ev.NeedsCategorization(false)
}
