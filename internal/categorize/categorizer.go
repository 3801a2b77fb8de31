// Package categorize turns vote titles into a category and signed weight.
// The Categorizer is total: every call yields a usable categorization, with
// the Other/0 fallback and an error whenever no trustworthy answer exists.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/poldna/internal/cache"
	"github.com/ppiankov/poldna/internal/llm"
	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/metrics"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/worker"
)

// ErrEmptyTitle is returned for events without a title to classify
var ErrEmptyTitle = errors.New("voting event has no title")

// Categorizer wraps a provider with cache, rate limiting and retries
type Categorizer struct {
	provider llm.Provider
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  *worker.Limiter
	retry    worker.Retry
	model    string
	log      logger.Logger
	metrics  *metrics.Manager
}

// Option configures a Categorizer
type Option func(*Categorizer)

// WithCache enables the title cache
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cz *Categorizer) {
		cz.cache = c
		cz.cacheTTL = ttl
	}
}

// WithLimiter shares a rate limiter across categorizers
func WithLimiter(l *worker.Limiter) Option {
	return func(cz *Categorizer) {
		cz.limiter = l
	}
}

// WithRetry sets the retry policy for provider calls
func WithRetry(r worker.Retry) Option {
	return func(cz *Categorizer) {
		cz.retry = r
	}
}

// WithModel overrides the provider's default model
func WithModel(name string) Option {
	return func(cz *Categorizer) {
		cz.model = name
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(cz *Categorizer) {
		cz.log = l
	}
}

// WithMetrics records categorization counters
func WithMetrics(m *metrics.Manager) Option {
	return func(cz *Categorizer) {
		cz.metrics = m
	}
}

// New creates a Categorizer. A nil provider is allowed: every uncached
// title then falls back with llm.ErrProviderDisabled.
func New(provider llm.Provider, opts ...Option) *Categorizer {
	c := &Categorizer{
		provider: provider,
		retry:    worker.Retry{MaxAttempts: 3, Base: time.Second, Max: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log).Named("categorize")
	if c.limiter == nil {
		c.limiter = worker.NewLimiter(0, 1)
	}

	retry := c.retry
	userRetryable := retry.Retryable
	retry.Retryable = func(err error) bool {
		if errors.Is(err, llm.ErrInvalidCategorization) {
			return false
		}
		return userRetryable == nil || userRetryable(err)
	}
	userOnRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.log.Warn(context.Background(), "categorizer call failed, retrying",
			logger.String("provider", c.providerName()),
			logger.Int("attempt", attempt),
			logger.String("wait", wait.String()),
			logger.Error(err))
		c.metrics.RecordRetry(c.providerName())
		if userOnRetry != nil {
			userOnRetry(attempt, err, wait)
		}
	}
	c.retry = retry

	return c
}

func (c *Categorizer) providerName() string {
	if c.provider == nil {
		return "none"
	}
	return c.provider.Name()
}

// Categorize classifies one event. On failure it returns the fallback
// categorization and a non-nil error; callers must not persist the fallback.
func (c *Categorizer) Categorize(ctx context.Context, ev model.VotingEvent) (model.Categorization, error) {
	result, err := c.categorize(ctx, ev)
	if err != nil {
		c.metrics.RecordCategorizationFailure()
		c.log.Warn(ctx, "categorization failed",
			logger.String("event_id", ev.ID),
			logger.Error(err))
		return model.FallbackCategorization(), err
	}
	c.metrics.RecordCategorized(result.Source)
	return result, nil
}

func (c *Categorizer) categorize(ctx context.Context, ev model.VotingEvent) (model.Categorization, error) {
	title := strings.TrimSpace(ev.Title)
	if title == "" {
		return model.Categorization{}, fmt.Errorf("event %s: %w", ev.ID, ErrEmptyTitle)
	}

	if c.cache != nil {
		if hit, ok := cache.GetCategorization(c.cache, title); ok {
			c.log.Debug(ctx, "categorization cache hit", logger.String("event_id", ev.ID))
			return hit, nil
		}
	}

	if c.provider == nil {
		return model.Categorization{}, fmt.Errorf("event %s: %w", ev.ID, llm.ErrProviderDisabled)
	}

	var resp *llm.CategorizeResponse
	attempts, err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx, c.provider.Name()); err != nil {
			return err
		}
		r, err := c.provider.Categorize(ctx, llm.CategorizeRequest{Title: title, Model: c.model})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return model.Categorization{}, fmt.Errorf("event %s: categorize after %d attempt(s): %w", ev.ID, attempts, err)
	}

	result := resp.Categorization
	if result.Source == "" {
		result.Source = "llm"
	}
	if result.Provider == "" {
		result.Provider = c.provider.Name()
	}
	if result.Category == model.CategoryOther {
		result.Weight = 0
	}

	if c.cache != nil {
		if err := cache.PutCategorization(c.cache, title, result, c.cacheTTL); err != nil {
			c.log.Warn(ctx, "categorization cache write failed", logger.String("event_id", ev.ID), logger.Error(err))
		}
	}

	c.log.Debug(ctx, "event categorized",
		logger.String("event_id", ev.ID),
		logger.String("category", string(result.Category)),
		logger.Float64("weight", result.Weight),
		logger.Int("tokens", resp.TokensUsed))

	return result, nil
}
