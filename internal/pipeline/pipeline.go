package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/poldna/internal/analytics"
	"github.com/ppiankov/poldna/internal/dna"
	"github.com/ppiankov/poldna/internal/integrity"
	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/metrics"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store"
	"github.com/ppiankov/poldna/internal/worker"
)

// Pipeline orchestrates batch passes over one store
type Pipeline struct {
	store       store.Store
	categorizer worker.Categorizer // nil skips the categorization stage
	config      *model.Config
	log         logger.Logger
	metrics     *metrics.Manager
	now         func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithCategorizer enables the categorization stage
func WithCategorizer(c worker.Categorizer) Option {
	return func(p *Pipeline) {
		p.categorizer = c
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithMetrics records pass metrics
func WithMetrics(m *metrics.Manager) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithClock overrides the time source for summaries and alert timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(st store.Store, cfg *model.Config, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	p := &Pipeline{
		store:  st,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrNop(p.log).Named("pipeline")
	return p
}

// PassSummary is the structured outcome of a batch pass
type PassSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Pending     int `json:"pending_events"`
	Categorized int `json:"categorized_events"`
	Unchanged   int `json:"unchanged_events"` // Already categorized by a concurrent writer
	Checkpoints int `json:"checkpoints"`

	Detect *DetectSummary `json:"detect,omitempty"`

	Profiles int `json:"profiles"`
	Parties  int `json:"parties"`

	Failures []model.ItemFailure `json:"failures,omitempty"`
}

func (p *Pipeline) newSummary() *PassSummary {
	return &PassSummary{RunID: uuid.NewString(), StartedAt: p.now().UTC()}
}

func (s *PassSummary) fail(stage, id string, err error) {
	s.Failures = append(s.Failures, model.ItemFailure{Stage: stage, ID: id, Error: err.Error()})
}

// Run executes a full pass: categorize pending events, sweep for promise
// deviations, then rebuild and publish profiles and party analytics.
// Per-item failures are collected in the summary; only store and context
// errors abort the pass.
func (p *Pipeline) Run(ctx context.Context) (*PassSummary, error) {
	summary := p.newSummary()
	p.log.Info(ctx, "batch pass started", logger.String("run_id", summary.RunID))

	if p.categorizer != nil {
		if err := p.categorize(ctx, summary); err != nil {
			summary.FinishedAt = p.now().UTC()
			return summary, err
		}
	} else {
		p.log.Info(ctx, "no categorizer configured, skipping categorization")
	}

	detect, err := p.DetectDeviations(ctx)
	if err != nil {
		summary.FinishedAt = p.now().UTC()
		return summary, err
	}
	summary.Detect = detect
	summary.Failures = append(summary.Failures, detect.Failures...)

	if err := p.rebuild(ctx, summary); err != nil {
		summary.FinishedAt = p.now().UTC()
		return summary, err
	}

	summary.FinishedAt = p.now().UTC()
	p.log.Info(ctx, "batch pass finished",
		logger.String("run_id", summary.RunID),
		logger.Int("categorized", summary.Categorized),
		logger.Int("profiles", summary.Profiles),
		logger.Int("parties", summary.Parties),
		logger.Int("failures", len(summary.Failures)))
	return summary, nil
}

// Categorize runs only the categorization stage
func (p *Pipeline) Categorize(ctx context.Context) (*PassSummary, error) {
	summary := p.newSummary()
	if p.categorizer == nil {
		return summary, fmt.Errorf("categorization stage: no categorizer configured")
	}
	err := p.categorize(ctx, summary)
	summary.FinishedAt = p.now().UTC()
	return summary, err
}

// Rebuild recomputes and publishes profiles and party aggregates from the
// current store contents
func (p *Pipeline) Rebuild(ctx context.Context) (*PassSummary, error) {
	summary := p.newSummary()
	err := p.rebuild(ctx, summary)
	summary.FinishedAt = p.now().UTC()
	return summary, err
}

func (p *Pipeline) categorize(ctx context.Context, summary *PassSummary) error {
	start := time.Now()
	defer func() { p.metrics.ObserveStage("categorize", time.Since(start)) }()

	cfg := p.config.Categorization
	snap, err := p.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	pending := snap.PendingEvents(cfg.Force)
	summary.Pending = len(pending)
	if len(pending) == 0 {
		p.log.Info(ctx, "no events pending categorization")
		return nil
	}

	p.log.Info(ctx, "categorizing events",
		logger.Int("pending", len(pending)),
		logger.Int("workers", cfg.Workers),
		logger.Int("checkpoint_every", cfg.CheckpointEvery))

	processor := worker.NewBatchProcessor(p.categorizer, cfg.Workers, cfg.CheckpointEvery)
	_, err = processor.Process(ctx, pending, func(ctx context.Context, cp worker.Checkpoint) error {
		for _, r := range cp.Results {
			if r.Error != nil {
				summary.fail("categorize", r.Event.ID, r.Error)
				continue
			}
			updated, err := p.store.UpdateCategory(ctx, r.Event.ID, r.Categorization, cfg.Force)
			if err != nil {
				return fmt.Errorf("update category %s: %w", r.Event.ID, err)
			}
			if updated {
				summary.Categorized++
			} else {
				summary.Unchanged++
			}
		}
		summary.Checkpoints++

		p.log.Info(ctx, "categorization checkpoint",
			logger.Int("chunk", cp.Chunk),
			logger.Int("chunks", cp.Chunks),
			logger.Int("done", cp.Done),
			logger.Int("total", cp.Total))

		if cfg.ReaggregateAtCheckpoint && cp.Chunk < cp.Chunks {
			return p.rebuild(ctx, summary)
		}
		return nil
	})
	return err
}

func (p *Pipeline) rebuild(ctx context.Context, summary *PassSummary) error {
	start := time.Now()
	defer func() { p.metrics.ObserveStage("rebuild", time.Since(start)) }()

	snap, err := p.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	responses, err := p.store.Responses(ctx)
	if err != nil {
		return fmt.Errorf("load responses: %w", err)
	}
	alerts, err := p.store.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}

	profiles := dna.BuildProfiles(snap, responses)
	parties := analytics.Compute(snap, profiles, analytics.Options{
		PivotScores:     integrity.PivotScores(alerts),
		PivotSampleSize: p.config.Engine.PivotSampleSize,
	})

	if err := p.store.Publish(ctx, profiles, parties); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	summary.Profiles = len(profiles)
	summary.Parties = len(parties)
	p.metrics.RecordPublish(len(profiles), len(parties), p.now())
	p.log.Debug(ctx, "snapshot published",
		logger.Int("profiles", len(profiles)),
		logger.Int("parties", len(parties)))
	return nil
}
