package watcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Notifier delivers alerts as desktop notifications. On macOS it uses
// osascript, on Linux notify-send; otherwise, or when the tool fails, the
// alert is written to Fallback.
type Notifier struct {
	GOOS string

	// Run executes a notification command.
	Run func(name string, args ...string) error

	// LookPath reports whether a command is installed.
	LookPath func(name string) (string, error)

	Fallback io.Writer
}

// NewNotifier returns a Notifier for the current host writing fallbacks to
// stderr.
func NewNotifier() *Notifier {
	return &Notifier{
		GOOS:     runtime.GOOS,
		Run:      func(name string, args ...string) error { return exec.Command(name, args...).Run() },
		LookPath: exec.LookPath,
		Fallback: os.Stderr,
	}
}

// Notify sends a desktop notification for the given alert with the default
// host notifier.
func Notify(alert Alert) error {
	return NewNotifier().Notify(alert)
}

// Notify sends alert, falling back to a plain text line.
func (n *Notifier) Notify(alert Alert) error {
	switch n.GOOS {
	case "darwin":
		script := fmt.Sprintf(
			`display notification %q with title "projectlens" subtitle %q`,
			alert.Message, alert.Title,
		)
		if err := n.Run("osascript", "-e", script); err != nil {
			return n.fallback(alert)
		}
		return nil
	case "linux":
		if _, err := n.LookPath("notify-send"); err != nil {
			return n.fallback(alert)
		}
		urgency := "normal"
		if alert.Level == LevelCritical {
			urgency = "critical"
		}
		if err := n.Run("notify-send", "-u", urgency, "projectlens: "+alert.Title, alert.Message); err != nil {
			return n.fallback(alert)
		}
		return nil
	default:
		return n.fallback(alert)
	}
}

// fallback prints the alert when no desktop notification system is
// available.
func (n *Notifier) fallback(alert Alert) error {
	w := n.Fallback
	if w == nil {
		w = os.Stderr
	}
	_, err := fmt.Fprintf(w, "[%s] %s: %s\n", alert.Level, alert.Title, alert.Message)
	return err
}
