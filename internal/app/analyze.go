package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/projectlens/internal/analytics"
	"github.com/blackwell-systems/projectlens/internal/analyzer"
	"github.com/blackwell-systems/projectlens/internal/capability"
	"github.com/blackwell-systems/projectlens/internal/config"
	"github.com/blackwell-systems/projectlens/internal/output"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/store"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
	"github.com/blackwell-systems/projectlens/internal/suggest"
)

var (
	analyzeRoot      string
	analyzeProfile   string
	analyzeOutput    string
	analyzeFormat    string
	analyzeOperation string
	analyzeNoHistory bool
	analyzeFailOn    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score every subsystem and write the report",
	Long: `Analyze scans each configured subsystem of the project, scores it from
the keyword and artifact counts it finds, aggregates the scores into a
readiness tier, and prints prioritized recommendations.

The report is written to projectlens-report.json in the project root unless
--output is given. Each run is also recorded in the local history database.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRoot, "root", "", "Project root (default from config, usually the current directory)")
	analyzeCmd.Flags().StringVar(&analyzeProfile, "profile", "", "YAML subsystem profile replacing the built-in one")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Report path (default: <root>/projectlens-report.json)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "", "Report format: json or yaml; the report extension follows it (default from path or config)")
	analyzeCmd.Flags().StringVar(&analyzeOperation, "operation", "", "Analytics operation: comprehensive, eigenanalysis or svd_analysis")
	analyzeCmd.Flags().BoolVar(&analyzeNoHistory, "no-history", false, "Do not record this run in the history database")
	analyzeCmd.Flags().StringVar(&analyzeFailOn, "fail-on", "", "Exit non-zero when a recommendation at or above this priority exists (CRITICAL, HIGH, MEDIUM)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	failOn, err := parseFailOn(analyzeFailOn)
	if err != nil {
		return err
	}

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	root, err := resolveRoot(analyzeRoot, e.cfg)
	if err != nil {
		return err
	}

	a, err := buildAnalyzer(ctx, e, root, analyzeProfile, analyzeOperation)
	if err != nil {
		return err
	}

	r, err := a.Run(ctx)
	if err != nil {
		return err
	}

	path, format, err := reportTarget(analyzeFormat, analyzeOutput, root, e.cfg)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	} else {
		output.RenderReport(os.Stdout, r)
	}

	// The report is already printed, so a failed write only changes the exit
	// status.
	writeErr := report.Write(path, r, format)
	if writeErr != nil {
		e.log.Error("report not saved", zap.String("path", path), zap.Error(writeErr))
	} else if !flagJSON {
		fmt.Printf(" %s %s\n\n", output.StyleMuted.Render("Report written to"), path)
	}

	if e.cfg.History.Enabled && !analyzeNoHistory {
		recordHistory(e, r)
	}

	if writeErr != nil {
		return writeErr
	}
	if failOn != "" && suggest.AtLeast(r.Recommendations, failOn) {
		return fmt.Errorf("%s recommendation present (--fail-on %s)", suggest.Highest(r.Recommendations), failOn)
	}
	return nil
}

// parseFailOn validates the --fail-on priority. Empty disables the gate.
func parseFailOn(s string) (report.Priority, error) {
	if s == "" {
		return "", nil
	}
	p := report.Priority(strings.ToUpper(s))
	if !p.Valid() {
		return "", fmt.Errorf("invalid --fail-on %q (want CRITICAL, HIGH or MEDIUM)", s)
	}
	return p, nil
}

// resolveRoot returns the absolute project root from the flag or config.
func resolveRoot(flagRoot string, cfg *config.Config) (string, error) {
	root := flagRoot
	if root == "" {
		root = cfg.ProjectRoot
	}
	if root == "" {
		root = config.DefaultProjectRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project root %s is not a directory", abs)
	}
	return abs, nil
}

// reportTarget returns where and how the report is saved. The --format flag
// wins, then the extension of an explicit --output, then report_format. The
// path's extension is changed to match the format, since readers infer the
// format from it.
func reportTarget(flagFormat, output, root string, cfg *config.Config) (string, report.Format, error) {
	name := flagFormat
	path := output
	if path == "" {
		path = cfg.ResolveReportPath(root)
	} else if name == "" && hasReportExt(path) {
		name = string(report.FormatForPath(path))
	}
	if name == "" {
		name = cfg.ReportFormat
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		return "", "", err
	}
	return report.PathForFormat(path, format), format, nil
}

// savedReportPath is where analyze saves the report without --output or
// --format, and where show, doctor and the MCP tools look for it.
func savedReportPath(cfg *config.Config, root string) string {
	path := cfg.ResolveReportPath(root)
	if f, err := report.ParseFormat(cfg.ReportFormat); err == nil {
		path = report.PathForFormat(path, f)
	}
	return path
}

func hasReportExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// loadProfile returns the profile named by the flag, then the config, then
// the built-in default.
func loadProfile(flagProfile string, cfg *config.Config) ([]subsystem.Definition, error) {
	path := flagProfile
	if path == "" {
		path = cfg.ProfileFile
	}
	return subsystem.Load(path)
}

// detectCapabilities probes the host once for the whole process.
func detectCapabilities(ctx context.Context, cfg *config.Config) capability.Flags {
	opts := capability.Options{}
	if cfg.Analytics.Enabled {
		opts.RemoteEndpoint = cfg.Analytics.Endpoint
		opts.RemoteAPIKey = cfg.Analytics.APIKey
	}
	return capability.Detect(ctx, opts)
}

// buildChain assembles the analytics providers in priority order. With
// analytics disabled only the local provider remains.
func buildChain(cfg *config.Config, flags capability.Flags, log *zap.Logger) *analytics.Chain {
	providers := []analytics.Provider{analytics.Local{}}
	if cfg.Analytics.Enabled {
		providers = analytics.DefaultProviders(analytics.RemoteConfig{
			Endpoint:      cfg.Analytics.Endpoint,
			APIKey:        cfg.Analytics.APIKey,
			Timeout:       cfg.Analytics.Timeout,
			RatePerSecond: cfg.Analytics.RatePerSecond,
		})
	}
	return analytics.NewChain(flags, providers,
		analytics.WithAttemptTimeout(cfg.Analytics.Timeout),
		analytics.WithLogger(log))
}

// buildAnalyzer wires configuration, profile, capabilities and the analytics
// chain into an Analyzer for root.
func buildAnalyzer(ctx context.Context, e *env, root, profileFlag, operationFlag string) (*analyzer.Analyzer, error) {
	defs, err := loadProfile(profileFlag, e.cfg)
	if err != nil {
		return nil, err
	}

	op := operationFlag
	if op == "" {
		op = e.cfg.Analytics.Operation
	}
	operation, err := analytics.ParseOperation(op)
	if err != nil {
		return nil, err
	}

	flags := detectCapabilities(ctx, e.cfg)
	e.log.Debug("capabilities detected",
		zap.String("os", flags.OS),
		zap.String("arch", flags.Arch),
		zap.String("cpu", flags.CPUBrand),
		zap.Bool("accelerated", flags.Accelerated),
		zap.Bool("remote_configured", flags.RemoteConfigured))

	return analyzer.New(analyzer.Options{
		Root:         root,
		Definitions:  defs,
		Flags:        flags,
		Chain:        buildChain(e.cfg, flags, e.log),
		Operation:    operation,
		MaxFileBytes: e.cfg.MaxFileBytes,
		Concurrency:  e.cfg.Concurrency,
		Logger:       e.log,
		Version:      appVersion,
	})
}

// recordHistory stores r in the history database. Failures are logged and
// never fail the run.
func recordHistory(e *env, r *report.AggregateReport) {
	path := e.cfg.HistoryPath()
	db, err := store.Open(path)
	if err != nil {
		e.log.Warn("history unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	defer func() { _ = db.Close() }()

	if _, err := db.RecordRun(r); err != nil {
		e.log.Warn("recording run failed", zap.String("run_id", r.RunID), zap.Error(err))
		return
	}
	if keep := e.cfg.History.Keep; keep > 0 {
		if _, err := db.PruneRuns(r.ProjectRoot, keep); err != nil {
			e.log.Warn("pruning history failed", zap.Error(err))
		}
	}
}
