package suggest

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/projectlens/internal/analytics"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
)

// SubsystemRule turns a declarative subsystem rule into an engine rule.
func SubsystemRule(def subsystem.Definition, r subsystem.Rule) Rule {
	subject := r.Subject
	if subject == "" {
		subject = def.Name
	}
	return func(ctx *AnalysisContext) []report.Recommendation {
		comp := ctx.component(def.Name)
		trigger, fired := evaluate(def, r, comp)
		if !fired {
			return nil
		}
		if r.Trigger != "" {
			trigger = r.Trigger
		}
		return []report.Recommendation{{
			Priority: r.Priority,
			Subject:  subject,
			Trigger:  trigger,
			Action:   r.Action,
			Impact:   r.Impact,
		}}
	}
}

// evaluate reports whether r fires for comp and describes why.
func evaluate(def subsystem.Definition, r subsystem.Rule, comp report.ComponentReport) (string, bool) {
	switch r.Kind {
	case subsystem.RuleScoreBelow:
		if comp.Score < r.Threshold {
			return fmt.Sprintf("Sophistication score %.2f below %.2f", comp.Score, r.Threshold), true
		}
	case subsystem.RuleMissing:
		if !comp.Exists {
			where := def.Path
			if where == "" {
				where = "project root"
			}
			return fmt.Sprintf("%s not found at %s", def.Name, where), true
		}
	case subsystem.RuleFactAbsent:
		// A missing subsystem is reported by its missing rule, not by each
		// of its facts.
		if comp.Exists && comp.Metrics["fact."+r.Fact] == 0 {
			return fmt.Sprintf("%s not detected", humanize(r.Fact)), true
		}
	}
	return "", false
}

// RemoteAnalyticsUnused recommends configuring the remote analytics service
// when the run's strategic analytics were computed some other way.
func RemoteAnalyticsUnused(ctx *AnalysisContext) []report.Recommendation {
	if ctx == nil || ctx.Report == nil {
		return nil
	}
	s := ctx.Report.Strategic
	if s.Engine == analytics.EngineRemote {
		return nil
	}

	var trigger, action string
	if s.RemoteConfigured {
		trigger = fmt.Sprintf("Remote analytics unavailable, used %s computation", engineOrLocal(s.Engine))
		action = "Check the analytics endpoint and API key, then re-run"
	} else {
		trigger = fmt.Sprintf("Remote analytics not configured, used %s computation", engineOrLocal(s.Engine))
		action = "Set PROJECTLENS_ANALYTICS_API_KEY and analytics.endpoint for remote strategic analytics"
	}
	return []report.Recommendation{{
		Priority: report.PriorityMedium,
		Subject:  "Analytics",
		Trigger:  trigger,
		Action:   action,
		Impact:   "Strategic scores computed by the analytics service instead of the local estimate",
	}}
}

func engineOrLocal(engine string) string {
	if engine == "" {
		return analytics.EngineLocal
	}
	return engine
}

// humanize turns a snake_case fact name into words.
func humanize(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
