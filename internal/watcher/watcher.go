// Package watcher re-analyzes a project at a regular interval and emits
// alerts when scores, tiers or recommendations regress.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/projectlens/internal/report"
)

// DefaultScoreDrop is the per-subsystem score decrease that raises a warning.
const DefaultScoreDrop = 0.05

// State captures the parts of a run that alerts are computed from.
type State struct {
	Timestamp time.Time
	RunID     string
	MeanScore float64
	Tier      report.Tier

	// Order keeps subsystem names in profile order so alerts are stable.
	Order       []string
	Scores      map[string]float64
	Exists      map[string]bool
	Diagnostics map[string]int

	// Critical holds the subjects of CRITICAL recommendations.
	Critical map[string]bool
}

// StateFromReport extracts a State from a finished run.
func StateFromReport(r *report.AggregateReport) *State {
	s := &State{
		Timestamp:   r.Timestamp,
		RunID:       r.RunID,
		MeanScore:   r.Summary.MeanScore,
		Tier:        r.Summary.Tier,
		Scores:      make(map[string]float64, len(r.Order)),
		Exists:      make(map[string]bool, len(r.Order)),
		Diagnostics: make(map[string]int, len(r.Order)),
		Critical:    make(map[string]bool),
	}
	for _, c := range r.Ordered() {
		s.Order = append(s.Order, c.Name)
		s.Scores[c.Name] = c.Score
		s.Exists[c.Name] = c.Exists
		s.Diagnostics[c.Name] = len(c.Diagnostics)
	}
	for _, rec := range r.Recommendations {
		if rec.Priority == report.PriorityCritical {
			s.Critical[rec.Subject] = true
		}
	}
	return s
}

// Alert represents a notable event detected by the watcher.
type Alert struct {
	Level   string // LevelInfo, LevelWarning or LevelCritical
	Title   string
	Message string
	Time    time.Time
}

// AnalyzeFunc runs one full analysis of the watched project.
type AnalyzeFunc func(ctx context.Context) (*report.AggregateReport, error)

// Watcher re-runs an analysis at a regular interval and emits alerts when
// notable changes are detected.
type Watcher struct {
	analyze       AnalyzeFunc
	interval      time.Duration
	previous      *State
	alertFn       func(Alert)     // callback for emitting alerts
	onRun         func(*report.AggregateReport)
	lastAlertKeys map[string]bool // dedup: suppress repeated identical alerts

	// ScoreDrop is the per-subsystem decrease that raises a warning.
	ScoreDrop float64
}

// New creates a Watcher around analyze.
func New(analyze AnalyzeFunc, interval time.Duration, alertFn func(Alert)) *Watcher {
	return &Watcher{
		analyze:       analyze,
		interval:      interval,
		alertFn:       alertFn,
		lastAlertKeys: make(map[string]bool),
		ScoreDrop:     DefaultScoreDrop,
	}
}

// OnRun registers a callback receiving every successful run, e.g. to record
// it in the history.
func (w *Watcher) OnRun(fn func(*report.AggregateReport)) {
	w.onRun = fn
}

// Previous returns the last recorded state, or nil before the first run.
func (w *Watcher) Previous() *State {
	return w.previous
}

// SetBaseline makes s the state the next check is compared against.
func (w *Watcher) SetBaseline(s *State) {
	w.previous = s
}

// Run starts the watch loop. It takes an initial snapshot, then checks at
// every interval. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.previous == nil {
		initial, err := w.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("initial analysis: %w", err)
		}
		w.previous = initial
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			alerts := w.Check(ctx)
			for _, a := range alerts {
				if w.alertFn != nil {
					w.alertFn(a)
				}
			}
		}
	}
}

// Check performs a single check cycle: runs a new analysis, compares against
// the previous state, updates the previous state, and returns any alerts.
// Identical alerts are suppressed until the underlying data changes.
func (w *Watcher) Check(ctx context.Context) []Alert {
	curr, err := w.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return []Alert{{
			Level:   LevelWarning,
			Title:   "Analysis failed",
			Message: fmt.Sprintf("Could not analyze project: %v", err),
			Time:    time.Now(),
		}}
	}

	var raw []Alert
	if w.previous != nil {
		raw = Compare(w.previous, curr, w.ScoreDrop)
	}

	// Deduplicate: suppress alerts with the same title+message as last cycle.
	currentKeys := make(map[string]bool, len(raw))
	var alerts []Alert
	for _, a := range raw {
		key := a.Level + ":" + a.Title + ":" + a.Message
		currentKeys[key] = true
		if !w.lastAlertKeys[key] {
			alerts = append(alerts, a)
		}
	}
	w.lastAlertKeys = currentKeys

	w.previous = curr
	return alerts
}

// Snapshot runs the analysis once and returns its State.
func (w *Watcher) Snapshot(ctx context.Context) (*State, error) {
	r, err := w.analyze(ctx)
	if err != nil {
		return nil, err
	}
	if w.onRun != nil {
		w.onRun(r)
	}
	return StateFromReport(r), nil
}
