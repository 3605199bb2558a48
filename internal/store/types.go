// Package store provides SQLite database access for projectlens run history.
package store

import "time"

// Run is one recorded analysis run.
type Run struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	TakenAt     time.Time `json:"taken_at"`
	ProjectRoot string    `json:"project_root"`
	Version     string    `json:"version"`
	MeanScore   float64   `json:"mean_score"`
	Tier        string    `json:"tier"`
	Engine      string    `json:"engine"`
	Components  int       `json:"components"`
}

// ComponentScore is a subsystem's score within a run.
type ComponentScore struct {
	ID        int64   `json:"id"`
	RunID     int64   `json:"run_id"`
	Name      string  `json:"name"`
	Exists    bool    `json:"exists"`
	Score     float64 `json:"score"`
	Artifacts int     `json:"artifacts"`
}

// Recommendation is a stored recommendation of a run.
type Recommendation struct {
	ID       int64  `json:"id"`
	RunID    int64  `json:"run_id"`
	Position int    `json:"position"`
	Priority string `json:"priority"`
	Subject  string `json:"subject"`
	Trigger  string `json:"trigger"`
	Action   string `json:"action"`
}

// RunDetail is a run with everything recorded for it.
type RunDetail struct {
	Run             Run                `json:"run"`
	Components      []ComponentScore   `json:"components"`
	Recommendations []Recommendation   `json:"recommendations"`
	Statistics      map[string]float64 `json:"statistics"`
}

// ComponentDelta is the change of one component between two runs. Added or
// Removed is set when the component is only present in one of them.
type ComponentDelta struct {
	Name     string  `json:"name"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
	Added    bool    `json:"added,omitempty"`
	Removed  bool    `json:"removed,omitempty"`
}

// Comparison is the difference between the two most recent runs of a
// project.
type Comparison struct {
	Previous   Run              `json:"previous"`
	Current    Run              `json:"current"`
	MeanDelta  float64          `json:"mean_delta"`
	TierChange bool             `json:"tier_change"`
	Components []ComponentDelta `json:"components"`

	// Resolved and New list recommendation subjects that disappeared from
	// or appeared in the current run.
	Resolved []string `json:"resolved,omitempty"`
	New      []string `json:"new,omitempty"`
}
