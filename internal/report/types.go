// Package report defines the per-run result model, its aggregation into a
// readiness tier, and its persistence.
package report

import (
	"time"

	"github.com/blackwell-systems/projectlens/internal/capability"
)

// Priority is the urgency of a Recommendation.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
)

// Rank orders priorities: lower is more urgent. Unknown priorities rank last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool { return p.Rank() < 4 }

// Tier is the readiness classification of a run's mean score.
type Tier string

const (
	TierDevelopment Tier = "DEVELOPMENT_STAGE"
	TierNearReady   Tier = "NEAR_READY"
	TierDeployment  Tier = "DEPLOYMENT_READY"
	TierProduction  Tier = "PRODUCTION_READY"
)

// Rank orders tiers from 0 (development) to 3 (production). Unknown tiers
// rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierDevelopment:
		return 0
	case TierNearReady:
		return 1
	case TierDeployment:
		return 2
	case TierProduction:
		return 3
	default:
		return -1
	}
}

// Diagnostic records a contained artifact problem.
type Diagnostic struct {
	Artifact string `json:"artifact" yaml:"artifact"`
	Kind     string `json:"kind" yaml:"kind"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ComponentReport is the scoring result for one subsystem. It is built once
// by the analyzer and not modified afterwards.
type ComponentReport struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`
	Exists bool   `json:"exists" yaml:"exists"`

	// Artifacts lists the discovered artifact names in scan order.
	Artifacts []string `json:"artifacts" yaml:"artifacts"`

	// Counts maps each pattern category to its line-hit count.
	Counts map[string]int `json:"counts" yaml:"counts"`

	// Metrics holds every named value fed to the score formula.
	Metrics map[string]float64 `json:"metrics" yaml:"metrics"`

	Score float64 `json:"score" yaml:"score"`

	// Contributions lists what each formula term added, in term order.
	Contributions []Contribution `json:"contributions,omitempty" yaml:"contributions,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	// Analytics holds per-component statistics from the analytics chain.
	Analytics map[string]float64 `json:"analytics,omitempty" yaml:"analytics,omitempty"`
}

// Contribution is the capped value one formula term added to a score.
type Contribution struct {
	Term  string  `json:"term" yaml:"term"`
	Value float64 `json:"value" yaml:"value"`
}

// Summary is the aggregate of all component scores of a run.
type Summary struct {
	MeanScore          float64 `json:"mean_score" yaml:"mean_score"`
	Tier               Tier    `json:"tier" yaml:"tier"`
	ComponentsAnalyzed int     `json:"components_analyzed" yaml:"components_analyzed"`
}

// Strategic is the project-level analytics block.
type Strategic struct {
	// Engine names the analytics provider that produced the statistics.
	Engine string `json:"engine" yaml:"engine"`

	// Fallback is set when a higher-priority provider was tried and failed.
	Fallback bool `json:"fallback" yaml:"fallback"`

	// RemoteConfigured mirrors whether a remote analytics endpoint was set up.
	RemoteConfigured bool `json:"remote_configured" yaml:"remote_configured"`

	ArchitectureScore    float64 `json:"architecture_score" yaml:"architecture_score"`
	IntegrationReadiness float64 `json:"integration_readiness" yaml:"integration_readiness"`
	DeploymentConfidence float64 `json:"deployment_confidence" yaml:"deployment_confidence"`

	Statistics map[string]float64 `json:"statistics,omitempty" yaml:"statistics,omitempty"`

	// Errors holds the contained failures of providers tried before Engine.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Recommendation is one prioritized improvement derived from a run.
type Recommendation struct {
	Priority Priority `json:"priority" yaml:"priority"`
	Subject  string   `json:"subject" yaml:"subject"`
	Trigger  string   `json:"trigger" yaml:"trigger"`
	Action   string   `json:"action" yaml:"action"`
	Impact   string   `json:"impact" yaml:"impact"`
}

// AggregateReport is the complete result of one run.
type AggregateReport struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	ToolVersion string    `json:"tool_version" yaml:"tool_version"`
	ProjectRoot string    `json:"project_root" yaml:"project_root"`

	// AccelerationAvailable reports whether the accelerated analytics path
	// could be used on this host.
	AccelerationAvailable bool             `json:"acceleration_available" yaml:"acceleration_available"`
	Capabilities          capability.Flags `json:"capabilities" yaml:"capabilities"`

	// Order lists component names in profile order; Components is keyed by
	// the same names.
	Order      []string                   `json:"order" yaml:"order"`
	Components map[string]ComponentReport `json:"components" yaml:"components"`

	Summary         Summary          `json:"summary" yaml:"summary"`
	Strategic       Strategic        `json:"strategic" yaml:"strategic"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
}

// Component returns the named component report.
func (r *AggregateReport) Component(name string) (ComponentReport, bool) {
	c, ok := r.Components[name]
	return c, ok
}

// Ordered returns the component reports in profile order.
func (r *AggregateReport) Ordered() []ComponentReport {
	out := make([]ComponentReport, 0, len(r.Order))
	for _, name := range r.Order {
		if c, ok := r.Components[name]; ok {
			out = append(out, c)
		}
	}
	return out
}
