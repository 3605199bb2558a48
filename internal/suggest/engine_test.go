package suggest

import (
	"testing"

	"github.com/blackwell-systems/projectlens/internal/analytics"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
)

// healthyReport builds a report where every default subsystem exists, scores
// 0.95 and has every fact set, with remote analytics in use.
func healthyReport() *report.AggregateReport {
	var comps []report.ComponentReport
	for _, d := range subsystem.Default() {
		metrics := map[string]float64{}
		for _, f := range d.Facts {
			metrics["fact."+f.Name] = 1
		}
		comps = append(comps, report.ComponentReport{
			Name: d.Name, Path: d.Path, Exists: true, Score: 0.95, Metrics: metrics,
		})
	}
	r := &report.AggregateReport{
		Strategic: report.Strategic{Engine: analytics.EngineRemote, RemoteConfigured: true},
	}
	r.Assemble(comps)
	return r
}

func setComponent(r *report.AggregateReport, name string, fn func(c *report.ComponentReport)) {
	c := r.Components[name]
	fn(&c)
	r.Components[name] = c
}

// --- Engine.Run ---

func TestEngineRun_HealthyReportHasNoRecommendations(t *testing.T) {
	recs := NewEngine(subsystem.Default()).Run(&AnalysisContext{Report: healthyReport()})
	if len(recs) != 0 {
		t.Fatalf("expected no recommendations, got %+v", recs)
	}
}

func TestEngineRun_FoundationScoreHalf(t *testing.T) {
	r := healthyReport()
	setComponent(r, "Foundation", func(c *report.ComponentReport) { c.Score = 0.5 })

	recs := NewEngine(subsystem.Default()).Run(&AnalysisContext{Report: r})

	var foundation []report.Recommendation
	for _, rec := range recs {
		if rec.Subject == "Foundation" {
			foundation = append(foundation, rec)
		}
	}
	if len(foundation) != 1 {
		t.Fatalf("expected exactly 1 Foundation recommendation, got %d: %+v", len(foundation), recs)
	}
	if foundation[0].Priority != report.PriorityHigh {
		t.Errorf("expected HIGH, got %s", foundation[0].Priority)
	}
	if foundation[0].Trigger != "Sophistication score 0.50 below 0.80" {
		t.Errorf("unexpected trigger %q", foundation[0].Trigger)
	}
}

func TestEngineRun_EvaluationOrder(t *testing.T) {
	r := healthyReport()
	r.Strategic = report.Strategic{Engine: analytics.EngineLocal}
	setComponent(r, "Foundation", func(c *report.ComponentReport) { c.Score = 0.1 })
	setComponent(r, "IntelligenceFramework", func(c *report.ComponentReport) { c.Exists = false })
	setComponent(r, "DirectorFramework", func(c *report.ComponentReport) { c.Score = 0.3 })
	setComponent(r, "BridgeIntegrations", func(c *report.ComponentReport) { c.Score = 0.3 })

	recs := NewEngine(subsystem.Default()).Run(&AnalysisContext{Report: r})

	want := []struct {
		subject  string
		priority report.Priority
	}{
		{"Foundation", report.PriorityHigh},
		{"IntelligenceFramework", report.PriorityCritical},
		{"DirectorFramework", report.PriorityHigh},
		{"BridgeIntegrations", report.PriorityMedium},
		{"Analytics", report.PriorityMedium},
	}
	if len(recs) != len(want) {
		t.Fatalf("expected %d recommendations, got %d: %+v", len(want), len(recs), recs)
	}
	for i, w := range want {
		if recs[i].Subject != w.subject || recs[i].Priority != w.priority {
			t.Errorf("recs[%d] = %s/%s, want %s/%s", i, recs[i].Subject, recs[i].Priority, w.subject, w.priority)
		}
	}
}

func TestEngineRun_RulesAreIndependent(t *testing.T) {
	calls := 0
	counting := func(ctx *AnalysisContext) []report.Recommendation {
		calls++
		return []report.Recommendation{{Priority: report.PriorityMedium, Subject: "x"}}
	}
	e := NewEngineWithRules(counting, counting, counting)
	recs := e.Run(&AnalysisContext{Report: healthyReport()})
	if calls != 3 {
		t.Errorf("expected each rule evaluated once (3 calls), got %d", calls)
	}
	if len(recs) != 3 {
		t.Errorf("expected 3 recommendations, got %d", len(recs))
	}
}

func TestEngineRun_NilReport(t *testing.T) {
	// Should not panic; every component is treated as absent.
	recs := NewEngine(subsystem.Default()).Run(&AnalysisContext{})
	if recs == nil {
		t.Fatal("expected non-nil slice")
	}
}

func TestNewEngine_RuleCount(t *testing.T) {
	want := 1 // run-level analytics rule
	for _, d := range subsystem.Default() {
		want += len(d.EffectiveRules())
	}
	if got := NewEngine(subsystem.Default()).Len(); got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

// --- ranking ---

func TestCountByPriority(t *testing.T) {
	recs := []report.Recommendation{
		{Priority: report.PriorityHigh},
		{Priority: report.PriorityHigh},
		{Priority: report.PriorityMedium},
	}
	counts := CountByPriority(recs)
	if counts[report.PriorityHigh] != 2 || counts[report.PriorityMedium] != 1 || counts[report.PriorityCritical] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestHighestAndAtLeast(t *testing.T) {
	if Highest(nil) != "" {
		t.Error("expected empty priority for no recommendations")
	}
	if AtLeast(nil, report.PriorityMedium) {
		t.Error("AtLeast on empty should be false")
	}

	recs := []report.Recommendation{{Priority: report.PriorityMedium}, {Priority: report.PriorityCritical}}
	if got := Highest(recs); got != report.PriorityCritical {
		t.Errorf("Highest = %s, want CRITICAL", got)
	}
	if !AtLeast(recs, report.PriorityHigh) {
		t.Error("expected AtLeast HIGH")
	}
	if AtLeast([]report.Recommendation{{Priority: report.PriorityMedium}}, report.PriorityHigh) {
		t.Error("MEDIUM should not satisfy AtLeast HIGH")
	}
}
