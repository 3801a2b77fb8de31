package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store"
)

func TestUpdateCategory_BackfillOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.UpsertEvents(ctx, []model.VotingEvent{{ID: "e1", Title: "Carbon levy", Category: model.CategoryOther}}); err != nil {
		t.Fatal(err)
	}

	ok, err := s.UpdateCategory(ctx, "e1", model.Categorization{Category: model.CategoryEnvironment, Weight: 0.7}, false)
	if err != nil || !ok {
		t.Fatalf("first backfill should apply: ok=%v err=%v", ok, err)
	}

	ok, err = s.UpdateCategory(ctx, "e1", model.Categorization{Category: model.CategoryEconomy, Weight: -0.2}, false)
	if err != nil || ok {
		t.Fatalf("second backfill should be a no-op: ok=%v err=%v", ok, err)
	}

	ev, _ := s.Event(ctx, "e1")
	if ev.Category != model.CategoryEnvironment || *ev.Weight != 0.7 {
		t.Errorf("unexpected event after no-op: %+v", ev)
	}

	ok, _ = s.UpdateCategory(ctx, "e1", model.Categorization{Category: model.CategoryEconomy, Weight: -0.2}, true)
	if !ok {
		t.Error("forced backfill should apply")
	}

	if _, err := s.UpdateCategory(ctx, "missing", model.Categorization{}, false); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertEvents_KeepsStoredCategory(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.UpsertEvents(ctx, []model.VotingEvent{{ID: "e1", Title: "Carbon levy", AyeCount: 10}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateCategory(ctx, "e1", model.Categorization{Category: model.CategoryEnvironment, Weight: 0.7}, false); err != nil {
		t.Fatal(err)
	}

	// re-import with a stale category and no weight
	if err := s.UpsertEvents(ctx, []model.VotingEvent{{ID: "e1", Title: "Carbon levy (amended)", Category: model.CategoryOther, AyeCount: 12, NayCount: 3}}); err != nil {
		t.Fatal(err)
	}

	ev, err := s.Event(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Category != model.CategoryEnvironment || ev.Weight == nil || *ev.Weight != 0.7 || !ev.Categorized {
		t.Errorf("category data overwritten: %+v", ev)
	}
	if ev.Title != "Carbon levy (amended)" || ev.AyeCount != 12 || ev.NayCount != 3 {
		t.Errorf("tally not refreshed: %+v", ev)
	}
}

func TestAppendVotes_OnePerPair(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.AppendVotes(ctx, []model.VoteCast{
		{LegislatorID: "l1", EventID: "e1", Type: model.VoteAye},
		{LegislatorID: "l1", EventID: "e1", Type: model.VoteNay},
		{LegislatorID: "l2", EventID: "e1", Type: model.VoteNay},
	})
	snap, _ := s.Snapshot(ctx)
	if len(snap.Votes) != 2 {
		t.Fatalf("expected 2 votes, got %d", len(snap.Votes))
	}
	if snap.Votes[0].Type != model.VoteAye {
		t.Error("the first recorded vote must win")
	}
}

func TestPublish_ReplacesPreviousPass(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.Publish(ctx, []model.Profile{{LegislatorID: "a"}, {LegislatorID: "b"}}, []model.PartyAggregate{{Party: "P"}})
	_ = s.Publish(ctx, []model.Profile{{LegislatorID: "c"}}, nil)

	profiles, _ := s.Profiles(ctx)
	if len(profiles) != 1 || profiles[0].LegislatorID != "c" {
		t.Errorf("expected only the latest pass, got %+v", profiles)
	}
	if _, err := s.Profile(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected stale profile to be gone, got %v", err)
	}
	parties, _ := s.PartyAggregates(ctx)
	if len(parties) != 0 {
		t.Errorf("expected no parties, got %d", len(parties))
	}
}

func TestUpsertAlerts_KeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := model.Alert{ID: "id-1", LegislatorID: "l1", EventID: "e1", Severity: model.SeverityMedium}
	created, _ := s.UpsertAlerts(ctx, []model.Alert{first})
	if created != 1 {
		t.Errorf("expected 1 created, got %d", created)
	}

	again := model.Alert{ID: "id-2", LegislatorID: "l1", EventID: "e1", Severity: model.SeverityHigh}
	created, _ = s.UpsertAlerts(ctx, []model.Alert{again})
	if created != 0 {
		t.Errorf("expected update, got %d created", created)
	}

	alerts, _ := s.Alerts(ctx)
	if len(alerts) != 1 || alerts[0].ID != "id-1" || alerts[0].Severity != model.SeverityHigh {
		t.Errorf("unexpected alerts: %+v", alerts)
	}
}

func TestResponses_UpsertByQuestion(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.UpsertResponses(ctx, []model.CandidateResponse{
		{LegislatorID: "l1", Question: "q", Value: 1},
		{LegislatorID: "l1", Question: "q", Value: 4},
		{LegislatorID: "l0", Question: "q", Value: 2},
	})
	got, _ := s.Responses(ctx)
	if len(got) != 2 || got[0].LegislatorID != "l0" || got[1].Value != 4 {
		t.Errorf("unexpected responses: %+v", got)
	}
}
