package watcher

import (
	"fmt"
	"slices"
	"time"
)

// Alert levels.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
)

// alertLog collects alerts stamped with a single time.
type alertLog struct {
	at     time.Time
	alerts []Alert
}

func (l *alertLog) add(level, title, message string) {
	l.alerts = append(l.alerts, Alert{Level: level, Title: title, Message: message, Time: l.at})
}

// Compare returns the alerts for the changes from prev to curr, critical
// first, then warnings, then informational ones. scoreDrop is the
// per-subsystem decrease that raises a warning; zero disables it.
func Compare(prev, curr *State, scoreDrop float64) []Alert {
	l := &alertLog{at: time.Now()}

	// Critical: the project got worse in a way that needs attention now.
	if curr.Tier.Rank() < prev.Tier.Rank() {
		l.add(LevelCritical, fmt.Sprintf("Tier dropped to %s", curr.Tier),
			fmt.Sprintf("Mean score fell from %.2f to %.2f (was %s)", prev.MeanScore, curr.MeanScore, prev.Tier))
	}
	for _, name := range curr.Order {
		if prev.Exists[name] && !curr.Exists[name] {
			l.add(LevelCritical, "Subsystem missing: "+name,
				name+" was found in the previous run but not in this one")
		}
	}
	for _, subject := range raised(curr.Critical, prev.Critical) {
		l.add(LevelCritical, "New critical recommendation: "+subject,
			"A CRITICAL recommendation was raised that the previous run did not have")
	}

	// Warnings.
	for _, name := range curr.Order {
		p, seen := prev.Scores[name]
		if !seen || !curr.Exists[name] || scoreDrop <= 0 {
			continue
		}
		if c := curr.Scores[name]; p-c >= scoreDrop-1e-9 {
			l.add(LevelWarning, "Score regression: "+name,
				fmt.Sprintf("Decreased from %.2f to %.2f (%+.2f)", p, c, c-p))
		}
	}
	for _, name := range curr.Order {
		if n, was := curr.Diagnostics[name], prev.Diagnostics[name]; n > was {
			l.add(LevelWarning, "New diagnostics: "+name,
				fmt.Sprintf("%d unreadable or malformed artifact(s), was %d", n, was))
		}
	}

	// Informational.
	if curr.Tier.Rank() > prev.Tier.Rank() {
		l.add(LevelInfo, fmt.Sprintf("Tier raised to %s", curr.Tier),
			fmt.Sprintf("Mean score rose from %.2f to %.2f", prev.MeanScore, curr.MeanScore))
	}
	for _, name := range curr.Order {
		if curr.Exists[name] && !prev.Exists[name] {
			l.add(LevelInfo, "Subsystem found: "+name,
				fmt.Sprintf("Scored %.2f on first appearance", curr.Scores[name]))
		}
	}
	for _, subject := range raised(prev.Critical, curr.Critical) {
		l.add(LevelInfo, "Critical recommendation resolved: "+subject, "No longer raised in the current run")
	}

	return l.alerts
}

// raised returns the set members of now that are absent from before, sorted.
func raised(now, before map[string]bool) []string {
	var out []string
	for k, v := range now {
		if v && !before[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
