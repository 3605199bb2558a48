// Package app contains the Cobra command tree for projectlens.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/projectlens/internal/config"
	"github.com/blackwell-systems/projectlens/internal/logging"
	"github.com/blackwell-systems/projectlens/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor   bool
	flagJSON      bool
	flagVerbose   bool
	flagConfig    string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "projectlens",
	Short: "Heuristic sophistication scores for a multi-subsystem project",
	Long: `projectlens walks a project tree, scans a fixed set of subsystems for
keyword patterns, and turns the counts into a 0-1 sophistication score per
subsystem. Scores are averaged into a readiness tier, turned into prioritized
recommendations, and written as a JSON report with a local run history.

Run 'projectlens analyze' in a project root to get started.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		printSubcommands(cmd.OutOrStdout(), cmd)
		return nil
	},
}

// printSubcommands lists every subcommand of root with its summary.
func printSubcommands(w io.Writer, root *cobra.Command) {
	fmt.Fprintln(w, "projectlens", appVersion)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use a subcommand:")
	for _, c := range root.Commands() {
		if !c.IsAvailableCommand() || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		fmt.Fprintf(w, "  %-11s %s\n", c.Name(), c.Short)
	}
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/projectlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: json or console (default from config)")
}

// env is what every command needs after startup.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

// setup loads configuration, applies color preferences and builds the
// logger. The caller must call env.close.
func setup() (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	output.SetNoColor(!useColor(cfg, os.Stdout.Fd()))
	output.SetWidth(cfg.Output.Width)

	format := cfg.Output.LogFormat
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	log, err := logging.New(flagVerbose, format)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
}

// useColor reports whether styled output should be emitted on fd.
func useColor(cfg *config.Config, fd uintptr) bool {
	if flagNoColor || !cfg.Output.Color {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
