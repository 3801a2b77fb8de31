package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ppiankov/poldna/internal/render"
	"github.com/spf13/cobra"
)

var (
	passWorkers     int
	passForce       bool
	passReaggregate bool
	passMetricsFile string
)

// passCmd represents the pass command
var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Run a full batch pass",
	Long: `A batch pass runs every stage in order:
- Categorize uncategorized vote titles (checkpointed, rate limited)
- Sweep categorized events for promise deviations
- Rebuild all profiles and party analytics and publish them atomically

Per-item failures are reported in the summary and never abort the pass.

Example:
  poldna pass
  poldna pass --workers 8 --metrics-file /var/lib/node_exporter/poldna.prom
  poldna pass --force --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			applyPassFlags(cmd, a)
			banner(cmd.ErrOrStderr(), "poldna Batch Pass", a)

			p, err := a.newPipeline(ctx, true)
			if err != nil {
				return err
			}
			summary, err := p.Run(ctx)
			a.exportMetrics(ctx)
			if err != nil {
				return fmt.Errorf("batch pass: %w", err)
			}
			return a.out.Pass(summary)
		})
	},
}

// categorizeCmd represents the categorize command
var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Categorize pending vote titles without rebuilding profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			applyPassFlags(cmd, a)
			banner(cmd.ErrOrStderr(), "poldna Categorization", a)

			p, err := a.newPipeline(ctx, true)
			if err != nil {
				return err
			}
			summary, err := p.Categorize(ctx)
			a.exportMetrics(ctx)
			if err != nil {
				return fmt.Errorf("categorize: %w", err)
			}
			return a.out.Pass(summary)
		})
	},
}

// rebuildCmd represents the rebuild command
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute and publish profiles and party analytics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p, err := a.newPipeline(ctx, false)
			if err != nil {
				return err
			}
			summary, err := p.Rebuild(ctx)
			a.exportMetrics(ctx)
			if err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}
			return a.out.Pass(summary)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{passCmd, categorizeCmd} {
		cmd.Flags().IntVar(&passWorkers, "workers", 0, "concurrent categorizer calls (default from config)")
		cmd.Flags().BoolVar(&passForce, "force", false, "re-categorize events that already have a category")
		cmd.Flags().BoolVar(&passReaggregate, "reaggregate", false, "publish fresh profiles at every checkpoint")
		cmd.Flags().StringVar(&passMetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	}
	rebuildCmd.Flags().StringVar(&passMetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")

	rootCmd.AddCommand(passCmd)
	rootCmd.AddCommand(categorizeCmd)
	rootCmd.AddCommand(rebuildCmd)
}

// applyPassFlags lets explicitly set flags override the loaded config
func applyPassFlags(cmd *cobra.Command, a *app) {
	flags := cmd.Flags()
	if flags.Changed("workers") && passWorkers > 0 {
		a.cfg.Categorization.Workers = passWorkers
	}
	if flags.Changed("force") {
		a.cfg.Categorization.Force = passForce
	}
	if flags.Changed("reaggregate") {
		a.cfg.Categorization.ReaggregateAtCheckpoint = passReaggregate
	}
	if passMetricsFile != "" {
		a.cfg.Output.MetricsFile = passMetricsFile
	}
}

func banner(w io.Writer, title string, a *app) {
	if a.out.Format() == render.FormatJSON {
		return
	}
	cc := a.cfg.Categorization
	provider := a.cfg.LLM.Provider
	if provider == "" {
		provider = "disabled"
	} else if a.cfg.LLM.Model != "" {
		provider += "/" + a.cfg.LLM.Model
	}

	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	_, _ = fmt.Fprintf(w, "  %s\n", title)
	_, _ = fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "  Store:        %s\n", a.cfg.Store.Driver)
	_, _ = fmt.Fprintf(w, "  LLM:          %s\n", provider)
	_, _ = fmt.Fprintf(w, "  Workers:      %d\n", cc.Workers)
	_, _ = fmt.Fprintf(w, "  Rate limit:   %.1f req/s (burst %d)\n", cc.RequestsPerSecond, cc.BurstSize)
	_, _ = fmt.Fprintf(w, "  Checkpoint:   every %d events\n", cc.CheckpointEvery)
	if cc.Force {
		_, _ = fmt.Fprintf(w, "  Force:        on\n")
	}
	_, _ = fmt.Fprintf(w, "\n")
}
