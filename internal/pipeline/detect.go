package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/poldna/internal/integrity"
	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store"
)

// DetectSummary reports one deviation sweep
type DetectSummary struct {
	EventsChecked int                    `json:"events_checked"`
	Alerts        int                    `json:"alerts"`
	Created       int                    `json:"created"`
	Updated       int                    `json:"updated"`
	BySeverity    map[model.Severity]int `json:"by_severity"`
	Failures      []model.ItemFailure    `json:"failures,omitempty"`
}

// DetectDeviations checks the given events, or every event when none are
// named, against questionnaire answers and upserts the resulting alerts.
// Unknown event ids are reported as failures, not errors.
func (p *Pipeline) DetectDeviations(ctx context.Context, eventIDs ...string) (*DetectSummary, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveStage("detect", time.Since(start)) }()

	snap, err := p.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	responses, err := p.store.Responses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}

	summary := &DetectSummary{BySeverity: make(map[model.Severity]int)}

	events := snap.Events
	if len(eventIDs) > 0 {
		index := snap.EventIndex()
		events = events[:0:0]
		for _, id := range eventIDs {
			ev, ok := index[id]
			if !ok {
				summary.Failures = append(summary.Failures, model.ItemFailure{
					Stage: "detect", ID: id, Error: fmt.Sprintf("event %s: %v", id, store.ErrNotFound),
				})
				continue
			}
			events = append(events, ev)
		}
	}

	detector := integrity.NewDetector(responses, integrity.WithClock(p.now))
	votes := snap.VotesByEvent()

	var alerts []model.Alert
	for _, ev := range events {
		if !integrity.Checkable(ev) {
			continue
		}
		summary.EventsChecked++
		alerts = append(alerts, detector.Detect(ev, votes[ev.ID])...)
	}

	summary.Alerts = len(alerts)
	if len(alerts) == 0 {
		return summary, nil
	}

	created, err := p.store.UpsertAlerts(ctx, alerts)
	if err != nil {
		return summary, fmt.Errorf("upsert alerts: %w", err)
	}
	summary.Created = created
	summary.Updated = len(alerts) - created

	for _, a := range alerts {
		summary.BySeverity[a.Severity]++
	}
	for sev, n := range summary.BySeverity {
		p.metrics.RecordAlerts(string(sev), n)
	}

	p.log.Info(ctx, "deviation sweep finished",
		logger.Int("events_checked", summary.EventsChecked),
		logger.Int("alerts", summary.Alerts),
		logger.Int("created", summary.Created))
	return summary, nil
}
