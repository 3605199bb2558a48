package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/projectlens/internal/analyzer"
	"github.com/blackwell-systems/projectlens/internal/config"
	"github.com/blackwell-systems/projectlens/internal/logging"
	"github.com/blackwell-systems/projectlens/internal/output"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/watcher"
)

var (
	watchRoot      string
	watchProfile   string
	watchDaemon    bool
	watchInterval  string
	watchStop      bool
	watchQuiet     bool
	watchScoreDrop float64
	watchRecord    bool
)

// minWatchInterval keeps full re-analysis from running back to back.
const minWatchInterval = 10 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-analyze periodically and alert on regressions",
	Long: `Run a monitor that re-analyzes the project at a fixed interval. When the
readiness tier drops, a subsystem disappears, a score regresses or a new
CRITICAL recommendation appears, desktop notifications and/or terminal alerts
are emitted.

Examples:
  projectlens watch                    # run in foreground (ctrl-c to stop)
  projectlens watch --daemon           # run in background, write PID file
  projectlens watch --interval 5m      # check every 5 minutes (default: 10m)
  projectlens watch --score-drop 0.1   # only warn on drops of 0.1 or more
  projectlens watch --stop             # stop the background daemon`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRoot, "root", "", "Project root (default from config)")
	watchCmd.Flags().StringVar(&watchProfile, "profile", "", "YAML subsystem profile replacing the built-in one")
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "10m", "Check interval as duration string (e.g. 5m, 1h)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop a running background daemon")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress terminal output, only send notifications")
	watchCmd.Flags().Float64Var(&watchScoreDrop, "score-drop", watcher.DefaultScoreDrop, "Per-subsystem score decrease that raises a warning")
	watchCmd.Flags().BoolVar(&watchRecord, "record", false, "Record every run in the history database")
	rootCmd.AddCommand(watchCmd)
}

// logFilePath returns the path to the daemon log file.
func logFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.log")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchStop {
		return stopDaemon()
	}

	interval, err := time.ParseDuration(watchInterval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", watchInterval, err)
	}
	if interval < minWatchInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minWatchInterval, interval)
	}

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	root, err := resolveRoot(watchRoot, e.cfg)
	if err != nil {
		return err
	}

	// Capabilities and the provider chain are set up once for the whole
	// session; every tick reuses the same analyzer.
	a, err := buildAnalyzer(ctx, e, root, watchProfile, "")
	if err != nil {
		return err
	}

	if watchDaemon {
		return runDaemon(ctx, e, a, interval)
	}
	return runForeground(ctx, e, a, interval)
}

// newWatcher wires the analyzer, history recording and score threshold into
// a Watcher.
func newWatcher(e *env, a *analyzer.Analyzer, interval time.Duration, alertFn func(watcher.Alert)) *watcher.Watcher {
	w := watcher.New(a.Run, interval, alertFn)
	w.ScoreDrop = watchScoreDrop
	if watchRecord && e.cfg.History.Enabled {
		w.OnRun(func(r *report.AggregateReport) { recordHistory(e, r) })
	}
	return w
}

// runForeground runs the watcher in the foreground with live terminal output.
func runForeground(ctx context.Context, e *env, a *analyzer.Analyzer, interval time.Duration) error {
	if !watchQuiet {
		fmt.Printf("projectlens watching... (checking every %s)\n", interval)
	}

	notifier := watcher.NewNotifier()
	alertFn := func(al watcher.Alert) {
		_ = notifier.Notify(al)
		if !watchQuiet {
			printAlert(al)
		}
	}

	w := newWatcher(e, a, interval, alertFn)

	initial, err := w.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial analysis failed: %w", err)
	}
	if !watchQuiet {
		fmt.Printf("[%s] %s Baseline %s (%.2f, %d subsystems)\n",
			time.Now().Format("15:04:05"),
			alertIcon(watcher.LevelInfo),
			output.TierStyle(initial.Tier).Render(string(initial.Tier)),
			initial.MeanScore,
			len(initial.Order))
	}

	err = runUntilCancelled(ctx, w, initial)
	if err == nil && !watchQuiet {
		fmt.Println("\nStopped.")
	}
	return err
}

// runDaemon claims the PID file and runs the watcher with a JSON log file
// in place of terminal output. Backgrounding is left to the caller (nohup,
// a service manager) since Go cannot reliably fork.
func runDaemon(ctx context.Context, e *env, a *analyzer.Analyzer, interval time.Duration) error {
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	pid := daemonPID()
	if err := pid.acquire(); err != nil {
		return err
	}
	defer pid.release()

	log, err := logging.NewFile(logFilePath(), flagVerbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("daemon started", zap.Int("pid", os.Getpid()), zap.Duration("interval", interval))

	notifier := watcher.NewNotifier()
	notifier.Fallback = io.Discard
	alertFn := func(al watcher.Alert) {
		if err := notifier.Notify(al); err != nil {
			log.Debug("desktop notification failed", zap.Error(err))
		}
		log.Info(al.Title, zap.String("level", al.Level), zap.String("detail", al.Message))
	}

	daemonEnv := *e
	daemonEnv.log = log
	w := newWatcher(&daemonEnv, a, interval, alertFn)
	err = runUntilCancelled(ctx, w, nil)
	if err != nil {
		log.Error("daemon stopped", zap.Error(err))
		return err
	}
	log.Info("daemon stopped")
	return nil
}

// runUntilCancelled runs w and treats cancellation as a clean stop. A non-nil
// initial state is used as the baseline instead of a fresh analysis.
func runUntilCancelled(ctx context.Context, w *watcher.Watcher, initial *watcher.State) error {
	if initial != nil {
		w.SetBaseline(initial)
	}
	err := w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pidFile records the PID of the running watch daemon.
type pidFile string

func daemonPID() pidFile {
	return pidFile(filepath.Join(config.ConfigDir(), "watch.pid"))
}

// read returns the recorded PID.
func (p pidFile) read() (int, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", p, err)
	}
	return pid, nil
}

// acquire records the current process, replacing a file left by a process
// that is no longer running.
func (p pidFile) acquire() error {
	if pid, err := p.read(); err == nil && processExists(pid) {
		return fmt.Errorf("daemon already running (PID %d). Use --stop to stop it", pid)
	}
	if err := os.WriteFile(string(p), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	return nil
}

func (p pidFile) release() {
	_ = os.Remove(string(p))
}

// stopDaemon terminates the daemon named by the PID file.
func stopDaemon() error {
	pf := daemonPID()
	pid, err := pf.read()
	if err != nil {
		return fmt.Errorf("no daemon running: %w", err)
	}
	if !processExists(pid) {
		pf.release()
		return fmt.Errorf("no daemon running (PID %d is not active, removed stale PID file)", pid)
	}
	if err := terminate(pid); err != nil {
		return fmt.Errorf("stopping daemon (PID %d): %w", pid, err)
	}
	pf.release()
	fmt.Printf("Stopped daemon (PID %d)\n", pid)
	return nil
}

// printAlert formats and prints an alert to the terminal.
func printAlert(a watcher.Alert) {
	fmt.Printf("[%s] %s %s\n", a.Time.Format("15:04:05"), alertIcon(a.Level), a.Title)
	if a.Message != "" {
		fmt.Printf("         %s\n", a.Message)
	}
}

var alertIcons = map[string]struct {
	glyph string
	style func() lipgloss.Style
}{
	watcher.LevelCritical: {"●", func() lipgloss.Style { return output.StyleError }},
	watcher.LevelWarning:  {"▲", func() lipgloss.Style { return output.StyleWarning }},
	watcher.LevelInfo:     {"✓", func() lipgloss.Style { return output.StyleSuccess }},
}

// alertIcon returns the terminal indicator for an alert level.
func alertIcon(level string) string {
	icon, ok := alertIcons[level]
	if !ok {
		return " "
	}
	return icon.style().Render(icon.glyph)
}
