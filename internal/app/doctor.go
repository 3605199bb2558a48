package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/projectlens/internal/capability"
	"github.com/blackwell-systems/projectlens/internal/config"
	"github.com/blackwell-systems/projectlens/internal/output"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/store"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
	"github.com/blackwell-systems/projectlens/internal/suggest"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check host capabilities and configuration",
	Long: `Run a series of health checks against the projectlens configuration,
the subsystem profile and the host. Prints a pass/fail line for each check
and a summary of how many checks passed.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck holds the result of a single health check.
type doctorCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// doctorOutput is the JSON-serializable result of the doctor command.
type doctorOutput struct {
	Checks       []doctorCheck    `json:"checks"`
	Capabilities capability.Flags `json:"capabilities"`
	PassedCount  int              `json:"passed"`
	TotalCount   int              `json:"total"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	flags := detectCapabilities(cmd.Context(), e.cfg)

	var checks []doctorCheck
	root, rootCheck := checkProjectRoot(e.cfg)
	checks = append(checks, rootCheck)

	defs, profileCheck := checkProfile(e.cfg)
	checks = append(checks, profileCheck)
	if root != "" && defs != nil {
		checks = append(checks, checkCoverage(root, defs))
	}

	checks = append(checks, checkCapabilities(flags))
	checks = append(checks, checkAnalytics(e.cfg))
	checks = append(checks, checkHistory(e.cfg))
	if root != "" {
		checks = append(checks, checkLastReport(savedReportPath(e.cfg, root)))
	}
	checks = append(checks, checkWatchDaemon())

	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}

	if flagJSON {
		return writeJSON(doctorOutput{
			Checks:       checks,
			Capabilities: flags,
			PassedCount:  passed,
			TotalCount:   len(checks),
		})
	}

	fmt.Println(output.Section("Doctor"))
	fmt.Println()

	for _, c := range checks {
		renderDoctorCheck(c)
	}

	fmt.Println()
	summary := fmt.Sprintf("%d/%d checks passed", passed, len(checks))
	if passed == len(checks) {
		fmt.Printf(" %s\n\n", output.StyleSuccess.Render(summary))
	} else {
		fmt.Printf(" %s\n\n", output.StyleWarning.Render(summary))
	}

	return nil
}

// renderDoctorCheck prints a single check result line.
func renderDoctorCheck(c doctorCheck) {
	var indicator string
	if c.Passed {
		indicator = output.StyleSuccess.Render("✓")
	} else {
		indicator = output.StyleWarning.Render("✗")
	}
	label := output.StyleBold.Render(c.Name)
	detail := output.StyleMuted.Render(c.Message)
	fmt.Printf("  %s  %-30s %s\n", indicator, label, detail)
}

// checkProjectRoot resolves the configured project root. The returned root is
// empty when the check failed.
func checkProjectRoot(cfg *config.Config) (string, doctorCheck) {
	root, err := resolveRoot("", cfg)
	if err != nil {
		return "", doctorCheck{Name: "Project root", Message: err.Error()}
	}
	return root, doctorCheck{Name: "Project root", Passed: true, Message: root}
}

// checkProfile loads and validates the subsystem profile.
func checkProfile(cfg *config.Config) ([]subsystem.Definition, doctorCheck) {
	name := "built-in"
	if cfg.ProfileFile != "" {
		name = cfg.ProfileFile
	}
	defs, err := subsystem.Load(cfg.ProfileFile)
	if err != nil {
		return nil, doctorCheck{Name: "Subsystem profile", Message: err.Error()}
	}
	return defs, doctorCheck{
		Name:    "Subsystem profile",
		Passed:  true,
		Message: fmt.Sprintf("%s, %d subsystems", name, len(defs)),
	}
}

// checkCoverage counts how many subsystem roots exist in the project.
func checkCoverage(root string, defs []subsystem.Definition) doctorCheck {
	var missing []string
	for _, d := range defs {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(d.Path))); err != nil {
			missing = append(missing, d.Name)
		}
	}
	found := len(defs) - len(missing)
	msg := fmt.Sprintf("%d/%d subsystem paths found", found, len(defs))
	if len(missing) > 0 {
		msg += " (missing: " + strings.Join(missing, ", ") + ")"
	}
	return doctorCheck{
		Name:    "Subsystem coverage",
		Passed:  found > 0,
		Message: msg,
	}
}

// checkCapabilities reports the detected host flags. It always passes; the
// accelerated provider is optional.
func checkCapabilities(flags capability.Flags) doctorCheck {
	host := flags.OS + "/" + flags.Arch
	if flags.CPUBrand != "" {
		host += ", " + flags.CPUBrand
	}
	accel := "accelerated analytics off"
	if flags.Accelerated {
		accel = "accelerated analytics on"
	}
	return doctorCheck{
		Name:    "Host capabilities",
		Passed:  true,
		Message: host + ", " + accel,
	}
}

// checkAnalytics verifies the remote analytics configuration. Disabled
// analytics pass because the local provider always works.
func checkAnalytics(cfg *config.Config) doctorCheck {
	a := cfg.Analytics
	switch {
	case !a.Enabled:
		return doctorCheck{Name: "Remote analytics", Passed: true, Message: "disabled, local statistics only"}
	case a.Remote():
		masked := a.APIKey[:min(4, len(a.APIKey))] + "..."
		return doctorCheck{
			Name:    "Remote analytics",
			Passed:  true,
			Message: fmt.Sprintf("%s (key %s)", a.Endpoint, masked),
		}
	case a.Endpoint == "":
		return doctorCheck{Name: "Remote analytics", Passed: true, Message: "no endpoint configured, local statistics only"}
	default:
		return doctorCheck{
			Name:    "Remote analytics",
			Message: fmt.Sprintf("endpoint set but %s is not (env or env_file)", config.APIKeyEnv),
		}
	}
}

// checkHistory verifies that the history database exists and opens when enabled.
func checkHistory(cfg *config.Config) doctorCheck {
	if !cfg.History.Enabled {
		return doctorCheck{Name: "Run history", Passed: true, Message: "disabled"}
	}
	dbPath := cfg.HistoryPath()
	if _, err := os.Stat(dbPath); err != nil {
		return doctorCheck{
			Name:    "Run history",
			Message: fmt.Sprintf("not found at %s (run 'projectlens analyze' to create)", dbPath),
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return doctorCheck{Name: "Run history", Message: err.Error()}
	}
	defer db.Close()
	version, err := db.SchemaVersion()
	if err != nil {
		return doctorCheck{Name: "Run history", Message: err.Error()}
	}
	return doctorCheck{Name: "Run history", Passed: true, Message: fmt.Sprintf("%s (schema v%d)", dbPath, version)}
}

// checkLastReport verifies that the last written report parses.
func checkLastReport(path string) doctorCheck {
	r, err := report.Read(path)
	if err != nil {
		return doctorCheck{Name: "Last report", Message: err.Error()}
	}
	msg := fmt.Sprintf("%s, %s (%.2f)", r.Timestamp.Format("2006-01-02 15:04"), r.Summary.Tier, r.Summary.MeanScore)
	if top := suggest.Highest(r.Recommendations); top != "" {
		msg += fmt.Sprintf(", %d recommendations (highest %s)", len(r.Recommendations), top)
	}
	return doctorCheck{Name: "Last report", Passed: true, Message: msg}
}

// checkWatchDaemon reports whether a watch daemon is running.
func checkWatchDaemon() doctorCheck {
	pid, err := daemonPID().read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return doctorCheck{Name: "Watch daemon", Passed: true, Message: "not running"}
	case err != nil:
		return doctorCheck{Name: "Watch daemon", Message: err.Error()}
	case !processExists(pid):
		return doctorCheck{Name: "Watch daemon", Message: fmt.Sprintf("PID %d is not running (stale PID file)", pid)}
	}
	return doctorCheck{Name: "Watch daemon", Passed: true, Message: fmt.Sprintf("running (PID %d)", pid)}
}
