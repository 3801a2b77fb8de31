package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/poldna/internal/cache"
	"github.com/ppiankov/poldna/internal/categorize"
	"github.com/ppiankov/poldna/internal/llm"
	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/metrics"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/pipeline"
	"github.com/ppiankov/poldna/internal/render"
	"github.com/ppiankov/poldna/internal/store"
	"github.com/ppiankov/poldna/internal/store/memory"
	"github.com/ppiankov/poldna/internal/store/postgres"
	"github.com/ppiankov/poldna/internal/store/sqlite"
	"github.com/ppiankov/poldna/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const memoryCacheTTL = time.Hour

// app bundles what every command needs
type app struct {
	cfg     *model.Config
	log     logger.Logger
	store   store.Store
	metrics *metrics.Manager
	out     *render.Renderer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(viper.GetViper(), os.Getenv)
	if err != nil {
		return nil, err
	}
	return newAppWithConfig(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func newAppWithConfig(cfg *model.Config, stdout, stderr io.Writer) (*app, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	outFormat, err := render.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	log := logger.New(stderr, level)
	st, err := openStore(cfg.Store, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		metrics: metrics.NewManager(),
		out:     render.New(stdout, outFormat),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// openStore selects the backend named by the config
func openStore(c model.StoreConfig, log logger.Logger) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "memory":
		return memory.New(), nil
	case "", "sqlite":
		st, err := sqlite.New(c.SQLitePath, sqlite.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres", "postgresql":
		repo, err := postgres.Open(c.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: memory, sqlite, postgres)", c.Driver)
	}
}

// newCategorizer wires provider, cache, limiter and retry policy from config.
// A disabled provider still yields a categorizer that serves cached titles.
func (a *app) newCategorizer(ctx context.Context) (*categorize.Categorizer, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(a.cfg.LLM, a.log))
	switch {
	case errors.Is(err, llm.ErrProviderDisabled):
		a.log.Warn(ctx, "no LLM provider configured; only cached titles will be categorized")
		provider = nil
	case err != nil:
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	cc := a.cfg.Categorization
	opts := []categorize.Option{
		categorize.WithLogger(a.log),
		categorize.WithMetrics(a.metrics),
		categorize.WithModel(a.cfg.LLM.Model),
		categorize.WithLimiter(worker.NewLimiter(cc.RequestsPerSecond, cc.BurstSize)),
		categorize.WithRetry(worker.Retry{
			MaxAttempts: cc.MaxRetries + 1,
			Base:        cc.BackoffBase,
			Max:         30 * time.Second,
		}),
	}
	if cc.CacheEnabled {
		opts = append(opts, categorize.WithCache(cache.NewLayeredCache(memoryCacheTTL, cc.CacheDir, cc.CacheTTL), cc.CacheTTL))
	}
	return categorize.New(provider, opts...), nil
}

func (a *app) newPipeline(ctx context.Context, withCategorizer bool) (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{
		pipeline.WithLogger(a.log),
		pipeline.WithMetrics(a.metrics),
	}
	if withCategorizer {
		c, err := a.newCategorizer(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithCategorizer(c))
	}
	return pipeline.NewPipeline(a.store, a.cfg, opts...), nil
}

// exportMetrics writes the textfile when one is configured
func (a *app) exportMetrics(ctx context.Context) {
	path := a.cfg.Output.MetricsFile
	if path == "" {
		return
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		a.log.Warn(ctx, "metrics export failed", logger.String("path", path), logger.Error(err))
	}
}

// withApp opens the app for the duration of fn
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close store: %w", closeErr)
		}
	}()
	return fn(cmd.Context(), a)
}
