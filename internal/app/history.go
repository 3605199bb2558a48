package app

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projectlens/internal/output"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/store"
)

var (
	historyRoot    string
	historyLimit   int
	historyAll     bool
	historyCompare bool
	historyRun     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs and compare the latest two",
	Long: `History lists the runs recorded by 'projectlens analyze' for the current
project, newest first. With --compare the two most recent runs are compared
per subsystem with trend arrows, and recommendations that were resolved or
newly raised are listed. With --run N the Nth most recent run (1 = latest)
is shown with its subsystem scores, recommendations and statistics.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyRoot, "root", "", "Project root (default from config)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of runs to list (0 = all)")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "List runs of every project")
	historyCmd.Flags().BoolVar(&historyCompare, "compare", false, "Compare the two most recent runs")
	historyCmd.Flags().IntVar(&historyRun, "run", 0, "Show the Nth most recent run in detail (1 = latest)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	root, err := resolveRoot(historyRoot, e.cfg)
	if err != nil {
		return err
	}

	db, err := store.Open(e.cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer func() { _ = db.Close() }()

	if historyRun > 0 {
		d, err := db.GetRunDetail(root, historyRun)
		if err != nil {
			return fmt.Errorf("loading run: %w", err)
		}
		if d == nil {
			return fmt.Errorf("no run #%d recorded for %s", historyRun, root)
		}
		if flagJSON {
			return writeJSON(d)
		}
		renderRunDetail(d)
		return nil
	}

	if historyCompare {
		cmp, err := db.CompareLatest(root)
		if err != nil {
			return fmt.Errorf("comparing runs: %w", err)
		}
		if flagJSON {
			return writeJSON(cmp)
		}
		renderComparison(cmp)
		return nil
	}

	project := root
	if historyAll {
		project = ""
	}
	runs, err := db.ListRuns(project, historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if flagJSON {
		return writeJSON(runs)
	}
	renderRuns(runs, historyAll)
	return nil
}

func renderRuns(runs []store.Run, withProject bool) {
	fmt.Println(output.Section("Run History"))
	fmt.Println()

	if len(runs) == 0 {
		fmt.Println(output.StyleMuted.Render(" No runs recorded yet. Run 'projectlens analyze' first."))
		fmt.Println()
		return
	}

	headers := []string{"#", "Taken", "Mean", "Tier", "Engine", "Run"}
	if withProject {
		headers = append(headers, "Project")
	}
	tbl := output.NewTable(headers...).AlignRight(0, 2)
	for _, r := range runs {
		row := []string{
			fmt.Sprintf("%d", r.ID),
			r.TakenAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", r.MeanScore),
			output.TierStyle(report.Tier(r.Tier)).Render(r.Tier),
			r.Engine,
			shortID(r.RunID),
		}
		if withProject {
			row = append(row, r.ProjectRoot)
		}
		tbl.AddRow(row...)
	}
	tbl.Print()
	fmt.Println()
}

func renderRunDetail(d *store.RunDetail) {
	fmt.Println(output.Section(fmt.Sprintf("Run #%d", d.Run.ID)))
	fmt.Println()
	fmt.Printf(" %s %s\n", output.StyleLabel.Render("Run:"), d.Run.RunID)
	fmt.Printf(" %s %s\n", output.StyleLabel.Render("Taken:"), d.Run.TakenAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf(" %s %s\n", output.StyleLabel.Render("Mean score:"), output.ScoreBar(d.Run.MeanScore, 20))
	fmt.Printf(" %s %s\n", output.StyleLabel.Render("Tier:"), output.TierStyle(report.Tier(d.Run.Tier)).Render(d.Run.Tier))
	fmt.Printf(" %s %s\n\n", output.StyleLabel.Render("Engine:"), d.Run.Engine)

	tbl := output.NewTable("Subsystem", "Score", "Artifacts").AlignRight(2)
	for _, c := range d.Components {
		name := c.Name
		if !c.Exists {
			name += output.StyleMuted.Render(" (missing)")
		}
		tbl.AddRow(name, output.ScoreBar(c.Score, 10), fmt.Sprintf("%d", c.Artifacts))
	}
	tbl.Print()
	fmt.Println()

	for _, r := range d.Recommendations {
		p := report.Priority(r.Priority)
		fmt.Printf(" %s %s: %s\n", output.PriorityStyle(p).Render(fmt.Sprintf("%-8s", r.Priority)), r.Subject, r.Action)
	}
	if len(d.Recommendations) > 0 {
		fmt.Println()
	}

	if len(d.Statistics) > 0 {
		names := make([]string, 0, len(d.Statistics))
		for name := range d.Statistics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf(" %s %.4f\n", output.StyleLabel.Render(name), d.Statistics[name])
		}
		fmt.Println()
	}
}

func renderComparison(cmp *store.Comparison) {
	fmt.Println(output.Section("Run Comparison"))
	fmt.Println()

	if cmp == nil {
		fmt.Println(" Fewer than two runs recorded. Run 'projectlens analyze' again later to see trends.")
		fmt.Println()
		return
	}

	fmt.Printf(" Comparing run #%d (%s) against #%d (%s)\n\n",
		cmp.Current.ID, cmp.Current.TakenAt.Local().Format("2006-01-02 15:04"),
		cmp.Previous.ID, cmp.Previous.TakenAt.Local().Format("2006-01-02 15:04"))

	tbl := output.NewTable("Subsystem", "Previous", "Current", "Delta", "Trend").AlignRight(1, 2, 3)
	for _, d := range cmp.Components {
		prev := fmt.Sprintf("%.2f", d.Previous)
		curr := fmt.Sprintf("%.2f", d.Current)
		switch {
		case d.Added:
			prev = output.StyleMuted.Render("new")
		case d.Removed:
			curr = output.StyleMuted.Render("gone")
		}
		tbl.AddRow(d.Name, prev, curr, fmt.Sprintf("%+.2f", d.Delta), output.TrendArrow(d.Delta))
	}
	tbl.SetFooter(
		output.StyleBold.Render("Mean"),
		fmt.Sprintf("%.2f", cmp.Previous.MeanScore),
		fmt.Sprintf("%.2f", cmp.Current.MeanScore),
		fmt.Sprintf("%+.2f", cmp.MeanDelta),
		output.TrendArrow(cmp.MeanDelta),
	)
	tbl.Print()
	fmt.Println()

	if cmp.TierChange {
		fmt.Printf(" %s %s -> %s\n\n", output.StyleLabel.Render("Tier:"),
			output.TierStyle(report.Tier(cmp.Previous.Tier)).Render(cmp.Previous.Tier),
			output.TierStyle(report.Tier(cmp.Current.Tier)).Render(cmp.Current.Tier))
	}

	for _, s := range cmp.Resolved {
		fmt.Printf(" %s %s\n", output.StyleSuccess.Render("resolved"), s)
	}
	for _, s := range cmp.New {
		fmt.Printf(" %s %s\n", output.StyleWarning.Render("new     "), s)
	}
	if len(cmp.Resolved)+len(cmp.New) > 0 {
		fmt.Println()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
