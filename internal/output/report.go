package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/blackwell-systems/projectlens/internal/report"
)

// RenderReport writes the human-readable view of a run: component scores,
// the summary, the strategic block and the recommendations.
func RenderReport(w io.Writer, r *report.AggregateReport) {
	fmt.Fprintln(w, Section("Subsystem Sophistication"))
	fmt.Fprintln(w)
	RenderComponents(w, r.Ordered())

	RenderSummary(w, r)
	RenderStrategic(w, r.Strategic)
	RenderRecommendations(w, r.Recommendations)
}

// RenderComponents writes the component score table.
func RenderComponents(w io.Writer, comps []report.ComponentReport) {
	tbl := NewTable("Subsystem", "Found", "Artifacts", "Score", "Notes").AlignRight(2)
	for _, c := range comps {
		found := StyleError.Render("---")
		if c.Exists {
			found = StyleSuccess.Render("yes")
		}
		notes := ""
		if n := len(c.Diagnostics); n > 0 {
			notes = StyleWarning.Render(fmt.Sprintf("%d diagnostic(s)", n))
		}
		tbl.AddRow(c.Name, found, fmt.Sprintf("%d", len(c.Artifacts)), ScoreBar(c.Score, 20), notes)
	}
	tbl.Fprint(w)
}

// RenderSummary writes the run metadata and aggregate score.
func RenderSummary(w io.Writer, r *report.AggregateReport) {
	fmt.Fprintln(w, Section("Summary"))
	fmt.Fprintln(w)
	kv(w, "Project:", r.ProjectRoot)
	kv(w, "Run:", r.RunID)
	kv(w, "Timestamp:", r.Timestamp.Format("2006-01-02 15:04:05 MST"))
	kv(w, "Components analyzed:", fmt.Sprintf("%d", r.Summary.ComponentsAnalyzed))
	fmt.Fprintf(w, " %s %s\n", StyleLabel.Render("Mean score:"), ScoreBar(r.Summary.MeanScore, 20))
	fmt.Fprintf(w, " %s %s\n", StyleLabel.Render("Tier:"), TierStyle(r.Summary.Tier).Render(string(r.Summary.Tier)))
}

// RenderStrategic writes the strategic analytics block.
func RenderStrategic(w io.Writer, s report.Strategic) {
	fmt.Fprintln(w, Section("Strategic Analytics"))
	fmt.Fprintln(w)

	engine := s.Engine
	if engine == "" {
		engine = StyleError.Render("unavailable")
	} else if s.Fallback {
		engine += StyleMuted.Render(" (fallback)")
	}
	kv(w, "Engine:", engine)
	fmt.Fprintf(w, " %s %s\n", StyleLabel.Render("Architecture:"), ScoreBar(s.ArchitectureScore, 20))
	fmt.Fprintf(w, " %s %s\n", StyleLabel.Render("Integration:"), ScoreBar(s.IntegrationReadiness, 20))
	fmt.Fprintf(w, " %s %s\n", StyleLabel.Render("Deployment:"), ScoreBar(s.DeploymentConfidence, 20))
	for _, e := range s.Errors {
		fmt.Fprintf(w, " %s\n", StyleMuted.Render("! "+e))
	}
}

// RenderRecommendations writes recommendations in the order given.
func RenderRecommendations(w io.Writer, recs []report.Recommendation) {
	fmt.Fprintln(w, Section("Recommendations"))
	fmt.Fprintln(w)
	if len(recs) == 0 {
		fmt.Fprintln(w, StyleSuccess.Render(" No recommendations. Every subsystem meets its thresholds."))
		fmt.Fprintln(w)
		return
	}
	for i, r := range recs {
		tag := PriorityStyle(r.Priority).Render(fmt.Sprintf("[%s]", r.Priority))
		fmt.Fprintf(w, " %d. %s %s\n", i+1, tag, StyleBold.Render(r.Subject))
		fmt.Fprintf(w, "    %s %s\n", StyleMuted.Render("Trigger:"), r.Trigger)
		if r.Action != "" {
			fmt.Fprintf(w, "    %s %s\n", StyleMuted.Render("Action: "), r.Action)
		}
		if r.Impact != "" {
			fmt.Fprintf(w, "    %s %s\n", StyleMuted.Render("Impact: "), r.Impact)
		}
	}
	fmt.Fprintln(w)
}

// RenderComponentDetail writes every metric, term contribution and
// diagnostic of one component.
func RenderComponentDetail(w io.Writer, c report.ComponentReport) {
	fmt.Fprintln(w, Section(c.Name))
	fmt.Fprintln(w)
	path := c.Path
	if path == "" {
		path = "."
	}
	kv(w, "Path:", path)
	fmt.Fprintf(w, " %s %s\n", StyleLabel.Render("Score:"), ScoreBar(c.Score, 20))
	fmt.Fprintln(w)

	if len(c.Contributions) > 0 {
		tbl := NewTable("Term", "Contribution").AlignRight(1)
		for _, ct := range c.Contributions {
			tbl.AddRow(ct.Term, fmt.Sprintf("%.3f", ct.Value))
		}
		tbl.Fprint(w)
		fmt.Fprintln(w)
	}

	tbl := NewTable("Metric", "Value").AlignRight(1)
	for _, k := range sortedKeys(c.Metrics) {
		tbl.AddRow(k, fmt.Sprintf("%g", c.Metrics[k]))
	}
	tbl.Fprint(w)

	if len(c.Analytics) > 0 {
		fmt.Fprintln(w)
		at := NewTable("Statistic", "Value")
		for _, k := range sortedKeys(c.Analytics) {
			at.AddRow(k, fmt.Sprintf("%.4g", c.Analytics[k]))
		}
		at.Fprint(w)
	}

	if len(c.Diagnostics) > 0 {
		fmt.Fprintln(w)
		dt := NewTable("Artifact", "Problem", "Detail")
		for _, d := range c.Diagnostics {
			dt.AddRow(d.Artifact, StyleWarning.Render(d.Kind), d.Message)
		}
		dt.Fprint(w)
	}
}

func kv(w io.Writer, label, value string) {
	fmt.Fprintf(w, " %s %s\n", StyleLabel.Render(label), StyleBold.Render(value))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
