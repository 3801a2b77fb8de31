package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/poldna/internal/pipeline"
	"github.com/ppiankov/poldna/internal/util"
	"github.com/spf13/cobra"
)

var (
	importTimeout      time.Duration
	importMaxBytes     int64
	importIgnoreRobots bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file|url>",
	Short: "Import legislators, events, votes and questionnaire answers",
	Long: `Import reads a YAML dataset from a file or an http(s) URL and writes it
into the configured store. Remote fetches honor the host's robots.txt.
Re-importing is safe: legislators, events and answers are upserted, and
votes already recorded are kept as they are.

Example:
  poldna import chamber-2025.yaml
  poldna import https://example.org/votes.yaml --timeout 1m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location := args[0]
		return withApp(cmd, func(ctx context.Context, a *app) error {
			userAgent := "poldna/" + Version
			var opts []pipeline.LoaderOption
			if !importIgnoreRobots {
				opts = append(opts, pipeline.WithRobotsChecker(util.NewRobotsChecker(userAgent, importTimeout)))
			}
			loader := pipeline.NewLoader(importTimeout, userAgent, importMaxBytes, opts...)
			ds, err := loader.Load(ctx, location)
			if err != nil {
				return err
			}
			summary, err := pipeline.Import(ctx, a.store, ds)
			if err != nil {
				return fmt.Errorf("import %s: %w", location, err)
			}
			return a.out.Import(location, summary)
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().DurationVar(&importTimeout, "timeout", 30*time.Second, "HTTP timeout for remote datasets")
	importCmd.Flags().Int64Var(&importMaxBytes, "max-bytes", 64<<20, "maximum dataset size")
	importCmd.Flags().BoolVar(&importIgnoreRobots, "ignore-robots", false, "fetch remote datasets even when robots.txt disallows it")
}
