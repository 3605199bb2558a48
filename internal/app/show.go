package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projectlens/internal/output"
	"github.com/blackwell-systems/projectlens/internal/report"
)

var showComponent string

var showCmd = &cobra.Command{
	Use:   "show [report]",
	Short: "Render a previously written report",
	Long: `Show reads a report written by 'projectlens analyze' and renders it
without re-scanning the project. With --component the full metric breakdown
of one subsystem is printed instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showComponent, "component", "", "Show the metric breakdown of one subsystem")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		root, err := resolveRoot("", e.cfg)
		if err != nil {
			return err
		}
		path = savedReportPath(e.cfg, root)
	}

	r, err := report.Read(path)
	if err != nil {
		return err
	}

	if showComponent != "" {
		c, ok := r.Component(showComponent)
		if !ok {
			return fmt.Errorf("no subsystem %q in %s", showComponent, path)
		}
		if flagJSON {
			return writeJSON(c)
		}
		output.RenderComponentDetail(os.Stdout, c)
		return nil
	}

	if flagJSON {
		return writeJSON(r)
	}
	output.RenderReport(os.Stdout, r)
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
