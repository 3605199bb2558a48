package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/projectlens/internal/mcp"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/store"
)

var (
	mcpRoot    string
	mcpProfile string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP stdio server exposing reports to coding agents",
	Long: `Start a Model Context Protocol stdio server that an agent can query
while working on the project. The server exposes these tools:

  get_summary          Mean score, tier and per-subsystem scores of the last report
  get_component        Metric breakdown and diagnostics of one subsystem
  get_recommendations  Prioritized recommendations, optionally filtered
  run_analysis         Re-analyze the project and return the new summary
  get_history          Recent recorded runs and the latest score deltas

Add to an MCP client configuration:
  {"mcpServers":{"projectlens":{"command":"projectlens","args":["mcp"]}}}`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpRoot, "root", "", "Project root (default from config)")
	mcpCmd.Flags().StringVar(&mcpProfile, "profile", "", "YAML subsystem profile replacing the built-in one")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	root, err := resolveRoot(mcpRoot, e.cfg)
	if err != nil {
		return err
	}
	a, err := buildAnalyzer(ctx, e, root, mcpProfile, "")
	if err != nil {
		return err
	}

	srv := mcp.NewServer(mcpSources(e, root, a.Run), appVersion)
	return srv.Run(ctx, os.Stdin, os.Stdout)
}

// mcpSources binds the tool data sources to the project at root. Fresh runs
// are persisted and recorded like an analyze invocation.
func mcpSources(e *env, root string, analyze func(context.Context) (*report.AggregateReport, error)) mcp.Sources {
	path := savedReportPath(e.cfg, root)

	src := mcp.Sources{
		LoadReport: func(ctx context.Context) (*report.AggregateReport, error) {
			r, err := report.Read(path)
			if err != nil {
				return nil, fmt.Errorf("no report at %s (call run_analysis first): %w", path, err)
			}
			return r, nil
		},
		Analyze: func(ctx context.Context) (*report.AggregateReport, error) {
			r, err := analyze(ctx)
			if err != nil {
				return nil, err
			}
			_, format, err := reportTarget("", "", root, e.cfg)
			if err != nil {
				return nil, err
			}
			writeErr := report.Write(path, r, format)
			if writeErr != nil {
				e.log.Error("report not saved", zap.String("path", path), zap.Error(writeErr))
			}
			if e.cfg.History.Enabled {
				recordHistory(e, r)
			}
			return r, writeErr
		},
	}

	if e.cfg.History.Enabled {
		src.History = func(ctx context.Context, limit int) ([]store.Run, *store.Comparison, error) {
			db, err := store.Open(e.cfg.HistoryPath())
			if err != nil {
				return nil, nil, fmt.Errorf("opening history: %w", err)
			}
			defer func() { _ = db.Close() }()

			runs, err := db.ListRuns(root, limit)
			if err != nil {
				return nil, nil, err
			}
			cmp, err := db.CompareLatest(root)
			if err != nil {
				return nil, nil, err
			}
			return runs, cmp, nil
		}
	}
	return src
}
