package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/poldna/internal/analytics"
	"github.com/ppiankov/poldna/internal/forecast"
	"github.com/ppiankov/poldna/internal/integrity"
	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/match"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/worker"
	"github.com/spf13/cobra"
)

var (
	detectList bool

	matchVector string
	matchLimit  int

	predictCategory string
	predictWeight   float64
	predictAye      []string
	predictNay      []string
)

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect [event-id...]",
	Short: "Check votes against questionnaire promises",
	Long: `Detect compares each legislator's vote on a categorized event with their
questionnaire answers for the same category and stores an alert when the
gap is large enough. Without arguments every event is checked.

Use --list to print the stored alerts instead of running a sweep.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if detectList {
				alerts, err := a.store.Alerts(ctx)
				if err != nil {
					return fmt.Errorf("load alerts: %w", err)
				}
				return a.out.Alerts(alerts)
			}

			p, err := a.newPipeline(ctx, false)
			if err != nil {
				return err
			}
			summary, err := p.DetectDeviations(ctx, args...)
			if err != nil {
				return fmt.Errorf("detect: %w", err)
			}
			return a.out.Detect(summary)
		})
	},
}

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match [legislator-id]",
	Short: "Rank legislators by similarity to a legislator or a position",
	Long: `Match ranks every profiled legislator by compatibility with a target.
The target is either an existing legislator or a six-axis vector given as
Economy,Values,Environment,Regional,International,Security in [-1, 1].

Example:
  poldna match L042
  poldna match --vector 0.5,-0.2,0.8,0,0.1,-0.4 --limit 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (matchVector != "") {
			return errors.New("provide either a legislator id or --vector")
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			profiles, err := a.store.Profiles(ctx)
			if err != nil {
				return fmt.Errorf("load profiles: %w", err)
			}
			alerts, err := a.store.Alerts(ctx)
			if err != nil {
				return fmt.Errorf("load alerts: %w", err)
			}
			// Stats are pinned to the published snapshot the candidates come from
			m := match.New(profiles,
				match.WithStats(match.Stats(profiles)),
				match.WithPivotScores(integrity.PivotScores(alerts)))

			if matchVector != "" {
				target, err := parseVector(matchVector)
				if err != nil {
					return err
				}
				return a.out.Matches(target, m.Match(target), matchLimit)
			}

			results, err := m.MatchLegislator(args[0])
			if err != nil {
				return fmt.Errorf("legislator %s: %w", args[0], err)
			}
			target := profileAxes(profiles, args[0])
			return a.out.Matches(target, results, matchLimit)
		})
	},
}

// partiesCmd represents the parties command
var partiesCmd = &cobra.Command{
	Use:   "parties",
	Short: "Show party cohesion, polarization, pivot and topic ownership",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			parties, err := a.store.PartyAggregates(ctx)
			if err != nil {
				return fmt.Errorf("load party aggregates: %w", err)
			}
			return a.out.Parties(parties)
		})
	},
}

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict [event-id]",
	Short: "Forecast the outcome of a vote",
	Long: `Predict simulates a vote from published profiles and party cohesion.
An event without a category is categorized first and the result is
stored. Coalition parties (engine.coalition) follow an aye line, all others nay;
--aye and --nay override the line per party.

Example:
  poldna predict E2025-114
  poldna predict --category Environment --weight -0.8 --aye Greens`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 1) == (predictCategory != "") {
			return errors.New("provide either an event id or --category")
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			var req forecast.Request
			if len(args) == 1 {
				ev, err := a.store.Event(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load event %s: %w", args[0], err)
				}
				if ev.NeedsCategorization(false) {
					c, err := a.newCategorizer(ctx)
					if err != nil {
						return err
					}
					ev = a.inferCategory(ctx, c, ev)
				}
				req = forecast.RequestFor(ev)
			} else {
				cat, ok := model.ParseCategory(predictCategory)
				if !ok {
					return fmt.Errorf("unknown category %q", predictCategory)
				}
				req = forecast.Request{Category: cat}
				if cmd.Flags().Changed("weight") {
					w := predictWeight
					req.Weight = &w
				}
			}
			req.PartyLine = partyLine(predictAye, predictNay)

			snap, err := a.store.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			profiles, err := a.store.Profiles(ctx)
			if err != nil {
				return fmt.Errorf("load profiles: %w", err)
			}
			parties, err := a.store.PartyAggregates(ctx)
			if err != nil {
				return fmt.Errorf("load party aggregates: %w", err)
			}

			engine := forecast.NewEngine(snap.Legislators, profiles, analytics.CohesionIndex(parties), a.cfg.Engine.Coalition)
			prediction, err := engine.Predict(req)
			if errors.Is(err, forecast.ErrNoAxis) {
				return fmt.Errorf("no prediction available for category %s: %w", req.Category, err)
			}
			if err != nil {
				return err
			}
			return a.out.Prediction(prediction)
		})
	},
}

func init() {
	detectCmd.Flags().BoolVar(&detectList, "list", false, "list stored alerts")

	matchCmd.Flags().StringVar(&matchVector, "vector", "", "target position as six comma-separated values")
	matchCmd.Flags().IntVar(&matchLimit, "limit", 20, "legislators to show (0 = all)")

	predictCmd.Flags().StringVar(&predictCategory, "category", "", "category of a hypothetical vote")
	predictCmd.Flags().Float64Var(&predictWeight, "weight", 1, "signed weight of a hypothetical vote")
	predictCmd.Flags().StringSliceVar(&predictAye, "aye", nil, "parties whose line is aye")
	predictCmd.Flags().StringSliceVar(&predictNay, "nay", nil, "parties whose line is nay")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(partiesCmd)
	rootCmd.AddCommand(predictCmd)
}

// inferCategory asks the categorizer for a pending event's category and
// backfills it. On failure the event is returned unchanged.
func (a *app) inferCategory(ctx context.Context, c worker.Categorizer, ev model.VotingEvent) model.VotingEvent {
	cat, err := c.Categorize(ctx, ev)
	if err != nil {
		a.log.Warn(ctx, "categorization failed", logger.String("event_id", ev.ID), logger.Error(err))
		return ev
	}
	if !cat.Category.IsAxis() {
		return ev
	}

	weight := cat.Weight
	ev.Category = cat.Category
	ev.Weight = &weight
	ev.Categorized = true

	if _, err := a.store.UpdateCategory(ctx, ev.ID, cat, false); err != nil {
		a.log.Warn(ctx, "category backfill failed", logger.String("event_id", ev.ID), logger.Error(err))
	}
	return ev
}

// parseVector reads six comma-separated axis values, each in [-1, 1]
func parseVector(s string) (model.Vector, error) {
	var v model.Vector
	parts := strings.Split(s, ",")
	if len(parts) != model.AxisCount {
		return v, fmt.Errorf("vector needs %d values, got %d", model.AxisCount, len(parts))
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return v, fmt.Errorf("vector value %d: %w", i+1, err)
		}
		if f < -1 || f > 1 {
			return v, fmt.Errorf("vector value %d out of range [-1, 1]: %g", i+1, f)
		}
		v[i] = f
	}
	return v, nil
}

func profileAxes(profiles []model.Profile, id string) model.Vector {
	for _, p := range profiles {
		if p.LegislatorID == id {
			return p.Axes
		}
	}
	return model.Vector{}
}

func partyLine(aye, nay []string) map[string]bool {
	if len(aye) == 0 && len(nay) == 0 {
		return nil
	}
	line := make(map[string]bool, len(aye)+len(nay))
	for _, p := range aye {
		line[p] = true
	}
	for _, p := range nay {
		line[p] = false
	}
	return line
}
