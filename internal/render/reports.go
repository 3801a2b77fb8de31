package render

import (
	"fmt"
	"strings"

	"github.com/ppiankov/poldna/internal/forecast"
	"github.com/ppiankov/poldna/internal/match"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/pipeline"
)

// Import reports what an import wrote
func (r *Renderer) Import(source string, s pipeline.ImportSummary) error {
	if r.format == FormatJSON {
		return r.json(struct {
			Source string `json:"source"`
			pipeline.ImportSummary
		}{source, s})
	}
	r.title("Import complete")
	r.field("Source", source)
	r.field("Legislators", s.Legislators)
	r.field("Events", s.Events)
	r.field("Votes", s.Votes)
	r.field("Responses", s.Responses)
	return nil
}

// Pass reports a batch pass
func (r *Renderer) Pass(s *pipeline.PassSummary) error {
	if r.format == FormatJSON {
		return r.json(s)
	}
	r.title("Batch pass")
	r.field("Run", s.RunID)
	r.field("Duration", s.FinishedAt.Sub(s.StartedAt).Round(1e6))
	r.field("Pending", s.Pending)
	r.field("Categorized", s.Categorized)
	if s.Unchanged > 0 {
		r.field("Unchanged", s.Unchanged)
	}
	r.field("Checkpoints", s.Checkpoints)
	if s.Detect != nil {
		r.field("Alerts", fmt.Sprintf("%d (%d new)", s.Detect.Alerts, s.Detect.Created))
	}
	r.field("Profiles", s.Profiles)
	r.field("Parties", s.Parties)
	r.failures(s.Failures)
	return nil
}

// Detect reports a deviation sweep
func (r *Renderer) Detect(s *pipeline.DetectSummary) error {
	if r.format == FormatJSON {
		return r.json(s)
	}
	r.title("Promise-deviation sweep")
	r.field("Checked", s.EventsChecked)
	r.field("Alerts", s.Alerts)
	r.field("New", s.Created)
	r.field("Updated", s.Updated)
	r.field("High", s.BySeverity[model.SeverityHigh])
	r.field("Medium", s.BySeverity[model.SeverityMedium])
	r.failures(s.Failures)
	return nil
}

func (r *Renderer) failures(failures []model.ItemFailure) {
	if len(failures) == 0 {
		_, _ = fmt.Fprintln(r.w, okStyle.Render("  no failures"))
		return
	}
	r.blank()
	_, _ = fmt.Fprintln(r.w, warnStyle.Render(fmt.Sprintf("  %d failure(s)", len(failures))))
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.Stage, f.ID, f.Error})
	}
	r.table([]string{"Stage", "Item", "Error"}, rows)
}

// MatchReport is the JSON shape of a match
type MatchReport struct {
	Target      model.Vector       `json:"target"`
	Legislators []match.Result     `json:"legislators"`
	Parties     []match.PartyMatch `json:"parties"`
}

// Matches reports ranked legislators and the party rollup. limit caps the
// legislator table; 0 shows all.
func (r *Renderer) Matches(target model.Vector, results []match.Result, limit int) error {
	parties := match.RollupByParty(results)
	if r.format == FormatJSON {
		if limit > 0 && limit < len(results) {
			results = results[:limit]
		}
		return r.json(MatchReport{Target: target, Legislators: results, Parties: parties})
	}

	r.title("Closest legislators")
	r.field("Target", vectorString(target))
	rows := make([][]string, 0, len(results))
	for i, res := range results {
		if limit > 0 && i >= limit {
			break
		}
		pivot := "-"
		if res.Pivot != nil {
			pivot = f1(*res.Pivot)
		}
		rows = append(rows, []string{
			fmt.Sprint(i + 1), res.LegislatorID, res.Party,
			fmt.Sprintf("%d%%", res.Compatibility), fmt.Sprintf("%.3f", res.ZDistance), pivot,
		})
	}
	r.table([]string{"#", "Legislator", "Party", "Match", "Z-dist", "Pivot"}, rows)

	r.blank()
	r.title("Parties")
	prows := make([][]string, 0, len(parties))
	for _, p := range parties {
		prows = append(prows, []string{p.Party, fmt.Sprintf("%.1f%%", p.Compatibility), fmt.Sprint(len(p.Members))})
	}
	r.table([]string{"Party", "Match", "Members"}, prows)
	return nil
}

// Parties reports party analytics
func (r *Renderer) Parties(parties []model.PartyAggregate) error {
	if r.format == FormatJSON {
		return r.json(parties)
	}
	r.title("Party analytics")
	rows := make([][]string, 0, len(parties))
	for _, p := range parties {
		owned := string(p.OwnedCategory)
		if owned == "" {
			owned = "-"
		}
		rows = append(rows, []string{
			p.Party, fmt.Sprint(p.MPCount), f1(p.Cohesion), fmt.Sprint(p.CohesionEvents),
			f1(p.Polarization), f1(p.Pivot), owned,
		})
	}
	r.table([]string{"Party", "MPs", "Cohesion", "Events", "Polarization", "Pivot", "Owns"}, rows)
	return nil
}

// Prediction reports an outcome forecast
func (r *Renderer) Prediction(p forecast.Prediction) error {
	if r.format == FormatJSON {
		return r.json(p)
	}
	r.title("Outcome forecast")
	if p.EventID != "" {
		r.field("Event", p.EventID)
	}
	r.field("Category", p.Category)
	r.field("Aye", p.Aye)
	r.field("Nay", p.Nay)
	r.field("Undecided", p.Undecided)
	r.field("Margin", p.Margin)
	r.field("Weather", weatherLabel(p.Weather))
	if len(p.Rebels) == 0 {
		return nil
	}
	r.blank()
	rows := make([][]string, 0, len(p.Rebels))
	for _, rb := range p.Rebels {
		rows = append(rows, []string{rb.LegislatorID, rb.Party, fmt.Sprintf("%d%%", rb.Probability)})
	}
	r.table([]string{"Potential rebel", "Party", "Probability"}, rows)
	return nil
}

// Alerts lists stored integrity alerts
func (r *Renderer) Alerts(alerts []model.Alert) error {
	if r.format == FormatJSON {
		return r.json(alerts)
	}
	r.title("Integrity alerts")
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		sev := string(a.Severity)
		if a.Severity == model.SeverityHigh {
			sev = warnStyle.Render(sev)
		}
		rows = append(rows, []string{
			a.LegislatorID, a.EventID, string(a.Category), f2(a.PromiseValue), f2(a.VoteValue), fmt.Sprintf("%.2f", a.Deviation), sev,
		})
	}
	r.table([]string{"Legislator", "Event", "Category", "Promise", "Vote", "Deviation", "Severity"}, rows)
	return nil
}

func weatherLabel(w forecast.Weather) string {
	switch w {
	case forecast.Sunny:
		return okStyle.Render(string(w))
	case forecast.Stormy:
		return warnStyle.Render(string(w))
	default:
		return string(w)
	}
}

func vectorString(v model.Vector) string {
	parts := make([]string, 0, len(v))
	for _, a := range model.Axes {
		parts = append(parts, fmt.Sprintf("%s %s", a, f2(v[a])))
	}
	return strings.Join(parts, "  ")
}
