package suggest

import (
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
)

// Engine runs all registered rules against an AnalysisContext and collects
// the resulting recommendations.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the rules of every subsystem definition,
// in profile order, followed by the built-in run-level rules.
func NewEngine(defs []subsystem.Definition) *Engine {
	var rules []Rule
	for _, def := range defs {
		for _, r := range def.EffectiveRules() {
			rules = append(rules, SubsystemRule(def, r))
		}
	}
	rules = append(rules, RemoteAnalyticsUnused)
	return &Engine{rules: rules}
}

// NewEngineWithRules creates an engine that evaluates exactly rules.
func NewEngineWithRules(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Len returns the number of registered rules.
func (e *Engine) Len() int { return len(e.rules) }

// Run evaluates every rule exactly once. Rules are independent and the
// output keeps rule evaluation order.
func (e *Engine) Run(ctx *AnalysisContext) []report.Recommendation {
	all := []report.Recommendation{}
	for _, rule := range e.rules {
		all = append(all, rule(ctx)...)
	}
	return all
}
