// Package suggest provides the recommendation engine and rule types.
package suggest

import (
	"github.com/blackwell-systems/projectlens/internal/report"
)

// AnalysisContext provides all data needed by rules to generate
// recommendations. It is populated by the analyzer once every component of
// the run has been scored and the analytics block is known.
type AnalysisContext struct {
	// Report is the aggregate result of the run. Rules only read it.
	Report *report.AggregateReport
}

// component returns the named component report, or a zero report marked as
// absent when the run did not produce one.
func (c *AnalysisContext) component(name string) report.ComponentReport {
	if c == nil || c.Report == nil {
		return report.ComponentReport{Name: name}
	}
	comp, ok := c.Report.Component(name)
	if !ok {
		return report.ComponentReport{Name: name}
	}
	return comp
}

// Rule is a function that examines the analysis context and produces
// zero or more recommendations.
type Rule func(ctx *AnalysisContext) []report.Recommendation
