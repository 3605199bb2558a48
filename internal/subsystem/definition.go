// Package subsystem describes the named parts of a project that are scanned
// and scored, one configuration record per subsystem.
package subsystem

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/projectlens/internal/pattern"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/scoring"
)

// RuleKind selects how a Rule is evaluated.
type RuleKind string

const (
	// RuleScoreBelow fires when the component score is below Threshold.
	RuleScoreBelow RuleKind = "score_below"

	// RuleMissing fires when the subsystem root does not exist.
	RuleMissing RuleKind = "missing"

	// RuleFactAbsent fires when the subsystem exists but Fact is false.
	RuleFactAbsent RuleKind = "fact_absent"
)

// FileGroup counts walked files below Dir (relative to the subsystem root)
// into the metric files.<Name>. Empty Extensions count every file.
type FileGroup struct {
	Name       string   `yaml:"name" json:"name"`
	Dir        string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

// ArtifactKind classifies present artifacts by name into the metric
// artifacts.<Name>. Each artifact is assigned to the first kind it matches.
type ArtifactKind struct {
	Name         string   `yaml:"name" json:"name"`
	NameContains []string `yaml:"name_contains" json:"name_contains"`
}

// Fact is a structural boolean exposed as the 0/1 metric fact.<Name>. It
// holds when every condition that is set holds.
type Fact struct {
	Name string `yaml:"name" json:"name"`

	// Path must exist (file or directory), relative to the subsystem root.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// JSONPath is a dotted key path that must hold a non-empty value in the
	// JSON document at Path.
	JSONPath string `yaml:"json_path,omitempty" json:"json_path,omitempty"`

	// Glob must match the base name of at least one walked file.
	Glob string `yaml:"glob,omitempty" json:"glob,omitempty"`

	// Contains requires one of the keywords in some loaded artifact.
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`

	// Groups requires every named file group to be non-empty.
	Groups []string `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// FileFormula scores each loaded artifact on its own; the per-file scores
// feed file_score.avg and file_score.max.
type FileFormula struct {
	// Extensions restricts which artifacts are scored. Empty means all.
	Extensions []string        `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Formula    scoring.Formula `yaml:"formula" json:"formula"`
}

// Rule is a threshold check that emits one recommendation when it fires.
type Rule struct {
	Kind      RuleKind        `yaml:"kind" json:"kind"`
	Threshold float64         `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Fact      string          `yaml:"fact,omitempty" json:"fact,omitempty"`
	Priority  report.Priority `yaml:"priority" json:"priority"`

	// Subject defaults to the subsystem name.
	Subject string `yaml:"subject,omitempty" json:"subject,omitempty"`

	// Trigger overrides the generated trigger description.
	Trigger string `yaml:"trigger,omitempty" json:"trigger,omitempty"`

	Action string `yaml:"action" json:"action"`
	Impact string `yaml:"impact" json:"impact"`
}

// Definition is the full configuration of one subsystem pipeline.
type Definition struct {
	Name string `yaml:"name" json:"name"`

	// Path is relative to the project root. Empty means the root itself.
	Path string `yaml:"path" json:"path"`

	// Required adds a CRITICAL recommendation when the subsystem is absent,
	// unless a missing rule is declared explicitly.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Artifacts are known relative file names.
	Artifacts     []string       `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	ArtifactKinds []ArtifactKind `yaml:"artifact_kinds,omitempty" json:"artifact_kinds,omitempty"`

	// Extensions selects walked files whose content is loaded.
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`

	// Walk counts every file under the root into the files metric.
	Walk bool `yaml:"walk,omitempty" json:"walk,omitempty"`

	FileGroups []FileGroup `yaml:"file_groups,omitempty" json:"file_groups,omitempty"`

	// Subdirs are expected child directories counted into dirs.
	Subdirs []string `yaml:"subdirs,omitempty" json:"subdirs,omitempty"`

	Facts      []Fact             `yaml:"facts,omitempty" json:"facts,omitempty"`
	Categories []pattern.Category `yaml:"categories,omitempty" json:"categories,omitempty"`

	FileFormula *FileFormula    `yaml:"file_formula,omitempty" json:"file_formula,omitempty"`
	Formula     scoring.Formula `yaml:"formula" json:"formula"`

	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`

	// Ignore holds gitignore-style patterns applied to every walk.
	Ignore []string `yaml:"ignore,omitempty" json:"ignore,omitempty"`
}

// NeedsWalk reports whether the pipeline has to list the subsystem tree.
func (d Definition) NeedsWalk() bool {
	if d.Walk || len(d.Extensions) > 0 {
		return true
	}
	for _, f := range d.Facts {
		if f.Glob != "" {
			return true
		}
	}
	return false
}

// EffectiveRules returns the rules to evaluate in order, with the implicit
// missing rule of a required subsystem placed first.
func (d Definition) EffectiveRules() []Rule {
	if !d.Required {
		return d.Rules
	}
	for _, r := range d.Rules {
		if r.Kind == RuleMissing {
			return d.Rules
		}
	}
	implicit := Rule{
		Kind:     RuleMissing,
		Priority: report.PriorityCritical,
		Action:   fmt.Sprintf("Create the %s subsystem at %s", d.Name, d.displayPath()),
		Impact:   "Required subsystem contributes only its base score until present",
	}
	return append([]Rule{implicit}, d.Rules...)
}

func (d Definition) displayPath() string {
	if d.Path == "" {
		return "the project root"
	}
	return d.Path
}

// Validate checks a definition for configuration mistakes.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("subsystem with path %q has no name", d.Path)
	}
	if err := d.Formula.Validate(); err != nil {
		return fmt.Errorf("%s: formula: %w", d.Name, err)
	}
	if d.FileFormula != nil {
		if err := d.FileFormula.Formula.Validate(); err != nil {
			return fmt.Errorf("%s: file formula: %w", d.Name, err)
		}
	}

	groups := make(map[string]bool, len(d.FileGroups))
	for _, g := range d.FileGroups {
		if g.Name == "" {
			return fmt.Errorf("%s: file group with empty name", d.Name)
		}
		if groups[g.Name] {
			return fmt.Errorf("%s: duplicate file group %q", d.Name, g.Name)
		}
		groups[g.Name] = true
	}

	facts := make(map[string]bool, len(d.Facts))
	for _, f := range d.Facts {
		if f.Name == "" {
			return fmt.Errorf("%s: fact with empty name", d.Name)
		}
		if facts[f.Name] {
			return fmt.Errorf("%s: duplicate fact %q", d.Name, f.Name)
		}
		facts[f.Name] = true
		if f.Path == "" && f.Glob == "" && len(f.Contains) == 0 && len(f.Groups) == 0 {
			return fmt.Errorf("%s: fact %q has no condition", d.Name, f.Name)
		}
		if f.JSONPath != "" && f.Path == "" {
			return fmt.Errorf("%s: fact %q sets json_path without path", d.Name, f.Name)
		}
		for _, g := range f.Groups {
			if !groups[g] {
				return fmt.Errorf("%s: fact %q references unknown file group %q", d.Name, f.Name, g)
			}
		}
	}

	for i, r := range d.Rules {
		if !r.Priority.Valid() {
			return fmt.Errorf("%s: rule %d: unknown priority %q", d.Name, i, r.Priority)
		}
		switch r.Kind {
		case RuleScoreBelow:
			if r.Threshold <= 0 || r.Threshold > 1 {
				return fmt.Errorf("%s: rule %d: threshold %v outside (0,1]", d.Name, i, r.Threshold)
			}
		case RuleMissing:
		case RuleFactAbsent:
			if !facts[r.Fact] {
				return fmt.Errorf("%s: rule %d: unknown fact %q", d.Name, i, r.Fact)
			}
		default:
			return fmt.Errorf("%s: rule %d: unknown kind %q", d.Name, i, r.Kind)
		}
	}
	return nil
}

// ValidateAll validates every definition and checks names are unique.
func ValidateAll(defs []Definition) error {
	if len(defs) == 0 {
		return fmt.Errorf("profile defines no subsystems")
	}
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate subsystem name %q", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
