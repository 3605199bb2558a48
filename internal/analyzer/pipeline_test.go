package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blackwell-systems/projectlens/internal/analytics"
	"github.com/blackwell-systems/projectlens/internal/capability"
	"github.com/blackwell-systems/projectlens/internal/pattern"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/scoring"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// brokenProvider fails every call.
type brokenProvider struct{}

func (brokenProvider) Name() string { return "remote" }
func (brokenProvider) Available(capability.Flags) bool { return true }
func (brokenProvider) Analyze(context.Context, analytics.Request) (analytics.Result, error) {
	return analytics.Result{}, errors.New("connection refused")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func findDef(t *testing.T, name string) subsystem.Definition {
	t.Helper()
	for _, d := range subsystem.Default() {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no default subsystem %q", name)
	return subsystem.Definition{}
}

// --- New ---

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for empty root")
	}
	if _, err := New(Options{Root: t.TempDir(), Operation: "fourier"}); err == nil {
		t.Error("expected error for unknown operation")
	}
	bad := []subsystem.Definition{{Name: "", Formula: scoring.Formula{Base: 0.1}}}
	if _, err := New(Options{Root: t.TempDir(), Definitions: bad}); err == nil {
		t.Error("expected error for invalid profile")
	}
}

func TestNew_Defaults(t *testing.T) {
	a := newAnalyzer(t, Options{Root: t.TempDir()})
	if len(a.Definitions()) != len(subsystem.Default()) {
		t.Errorf("expected default profile, got %d definitions", len(a.Definitions()))
	}
	if a.opts.Operation != analytics.OpComprehensive {
		t.Errorf("expected comprehensive operation, got %q", a.opts.Operation)
	}
	if a.opts.Concurrency != DefaultConcurrency {
		t.Errorf("expected default concurrency, got %d", a.opts.Concurrency)
	}
}

// --- Run ---

func TestRun_EmptyProjectScoresBases(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newAnalyzer(t, Options{
		Root:    t.TempDir(),
		Version: "1.2.3",
		Now:     func() time.Time { return now },
	})

	r, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, now, r.Timestamp)
	assert.Equal(t, "1.2.3", r.ToolVersion)
	assert.Equal(t, len(subsystem.Default()), r.Summary.ComponentsAnalyzed)

	var sum float64
	for _, def := range subsystem.Default() {
		comp, ok := r.Component(def.Name)
		require.True(t, ok, "missing component %s", def.Name)
		assert.InDelta(t, def.Formula.Base, comp.Score, 1e-9, "component %s", def.Name)
		sum += def.Formula.Base
	}
	assert.InDelta(t, sum/float64(len(subsystem.Default())), r.Summary.MeanScore, 1e-9)
	assert.Equal(t, report.TierDevelopment, r.Summary.Tier)

	assert.Equal(t, analytics.EngineLocal, r.Strategic.Engine)
	assert.False(t, r.Strategic.Fallback)

	subjects := make([]string, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		subjects = append(subjects, rec.Subject)
	}
	assert.Equal(t, []string{"Foundation", "IntelligenceFramework", "DirectorFramework", "BridgeIntegrations", "Analytics"}, subjects)
	assert.Equal(t, report.PriorityCritical, r.Recommendations[1].Priority)
}

func TestRun_OrderFollowsProfile(t *testing.T) {
	a := newAnalyzer(t, Options{Root: t.TempDir(), Concurrency: 8})
	r, err := a.Run(context.Background())
	require.NoError(t, err)

	var want []string
	for _, d := range subsystem.Default() {
		want = append(want, d.Name)
	}
	assert.Equal(t, want, r.Order)
}

func TestRun_FailingProvidersFallBackToLocal(t *testing.T) {
	flags := capability.Flags{RemoteConfigured: true}
	chain := analytics.NewChain(flags, []analytics.Provider{brokenProvider{}, analytics.Local{}})
	a := newAnalyzer(t, Options{Root: t.TempDir(), Flags: flags, Chain: chain})

	r, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, analytics.EngineLocal, r.Strategic.Engine)
	assert.True(t, r.Strategic.Fallback)
	assert.True(t, r.Strategic.RemoteConfigured)
	require.Len(t, r.Strategic.Errors, 1)
	assert.Contains(t, r.Strategic.Errors[0], "connection refused")
	assert.Contains(t, r.Strategic.Statistics, "scores.mean")

	last := r.Recommendations[len(r.Recommendations)-1]
	assert.Equal(t, "Analytics", last.Subject)
	assert.Contains(t, last.Trigger, "unavailable")
}

func TestRun_EveryProviderFailingStillCompletes(t *testing.T) {
	chain := analytics.NewChain(capability.Flags{}, []analytics.Provider{brokenProvider{}})
	a := newAnalyzer(t, Options{Root: t.TempDir(), Chain: chain})

	r, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "", r.Strategic.Engine)
	assert.NotEmpty(t, r.Strategic.Errors)
	arch, integ, deploy := analytics.StrategicScores(r.Summary.MeanScore)
	assert.InDelta(t, arch, r.Strategic.ArchitectureScore, 1e-9)
	assert.InDelta(t, integ, r.Strategic.IntegrationReadiness, 1e-9)
	assert.InDelta(t, deploy, r.Strategic.DeploymentConfidence, 1e-9)
	assert.Equal(t, len(subsystem.Default()), r.Summary.ComponentsAnalyzed)
}

func TestRun_CancelledContext(t *testing.T) {
	a := newAnalyzer(t, Options{Root: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_DistinctRunIDs(t *testing.T) {
	a := newAnalyzer(t, Options{Root: t.TempDir()})
	r1, err := a.Run(context.Background())
	require.NoError(t, err)
	r2, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, r1.RunID, r2.RunID)
}

// --- AnalyzeComponent ---

func TestAnalyzeComponent_Foundation(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "foundation-models")
	writeFile(t, filepath.Join(dir, "index.js"), "export async function main() {\n  await run();\n}\n")
	writeFile(t, filepath.Join(dir, "package.json"), `{"dependencies": {"zap": "1.0.0"}}`)
	if err := os.MkdirAll(filepath.Join(dir, "learning-pipeline"), 0o755); err != nil {
		t.Fatal(err)
	}

	a := newAnalyzer(t, Options{Root: root})
	comp := a.AnalyzeComponent(context.Background(), findDef(t, "Foundation"))

	if !comp.Exists {
		t.Fatal("expected Foundation to exist")
	}
	if got := comp.Artifacts; len(got) != 2 || got[0] != "index.js" || got[1] != "package.json" {
		t.Errorf("unexpected artifacts %v", got)
	}
	if comp.Metrics["artifacts"] != 2 {
		t.Errorf("artifacts = %v, want 2", comp.Metrics["artifacts"])
	}
	if comp.Metrics["fact.learning_pipeline"] != 1 || comp.Metrics["fact.package_manifest"] != 1 {
		t.Errorf("expected both facts set, got %v", comp.Metrics)
	}
	if comp.Counts["async"] != 2 || comp.Counts["functions"] != 1 {
		t.Errorf("unexpected counts %v", comp.Counts)
	}

	// index.js: 0.1 + 3/500 + 1/20 + min(2/10, 0.15) = 0.306
	assert.InDelta(t, 0.306, comp.Metrics["file_score.avg"], 1e-9)
	// 0.2 + 2/10 + 0.306/2.5 + 0.3
	assert.InDelta(t, 0.8224, comp.Score, 1e-9)
	require.Len(t, comp.Contributions, 3)
	assert.Equal(t, "components", comp.Contributions[0].Term)
}

func TestAnalyzeComponent_FoundationWithoutDependencies(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "foundation-models", "package.json"), `{"dependencies": {}}`)

	a := newAnalyzer(t, Options{Root: root})
	comp := a.AnalyzeComponent(context.Background(), findDef(t, "Foundation"))
	if comp.Metrics["fact.package_manifest"] != 0 {
		t.Error("empty dependencies should not count as a manifest fact")
	}
}

func TestAnalyzeComponent_MalformedJSONIsDiagnostic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "StrategicDirectorFramework", "tsconfig.json"), `{"compilerOptions": `)

	a := newAnalyzer(t, Options{Root: root})
	comp := a.AnalyzeComponent(context.Background(), findDef(t, "DirectorFramework"))

	if comp.Metrics["fact.tsconfig"] != 1 {
		t.Error("tsconfig exists, fact should hold")
	}
	if comp.Metrics["fact.tsconfig_paths"] != 0 {
		t.Error("malformed tsconfig should not satisfy the paths fact")
	}
	require.Len(t, comp.Diagnostics, 1)
	assert.Equal(t, DiagParseError, comp.Diagnostics[0].Kind)
	assert.Equal(t, "tsconfig.json", comp.Diagnostics[0].Artifact)
}

func TestAnalyzeComponent_DirectorArtifactKinds(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "StrategicDirectorFramework")
	for _, name := range []string{
		"pattern-and-alignment-validator.js",
		"strategic-director-bridge.ts",
		"strategic-director-auto-integration.ts",
		"archaeology-configuration.js",
	} {
		writeFile(t, filepath.Join(dir, name), "// "+name+"\n")
	}
	writeFile(t, filepath.Join(dir, "tsconfig.json"), `{"compilerOptions": {"paths": {"@/*": ["src/*"]}}}`)

	a := newAnalyzer(t, Options{Root: root})
	comp := a.AnalyzeComponent(context.Background(), findDef(t, "DirectorFramework"))

	assert.Equal(t, 4.0, comp.Metrics["artifacts"])
	assert.Equal(t, 1.0, comp.Metrics["artifacts.validators"])
	assert.Equal(t, 1.0, comp.Metrics["artifacts.bridges"])
	assert.Equal(t, 1.0, comp.Metrics["fact.tsconfig_paths"])
	// 0.2 + 0.6 + 0.2 + 0.2 + 0.1 + 0.15 clamps to 1.
	assert.Equal(t, 1.0, comp.Score)
}

func TestAnalyzeComponent_IntelligenceFramework(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "AppleIntelligenceFramework")
	writeFile(t, filepath.Join(dir, "Sources", "Engine.swift"), "import CoreML\nlet neural = true\n")
	writeFile(t, filepath.Join(dir, "Sources", "Plain.swift"), "struct Plain {}\n")
	writeFile(t, filepath.Join(dir, "web", "index.ts"), "export const x = 1\n")
	writeFile(t, filepath.Join(dir, "node_modules", "dep", "dep.swift"), "neural\n")

	a := newAnalyzer(t, Options{Root: root})
	comp := a.AnalyzeComponent(context.Background(), findDef(t, "IntelligenceFramework"))

	assert.Equal(t, 3.0, comp.Metrics["files"])
	assert.Equal(t, 2.0, comp.Metrics["sources"])
	assert.Equal(t, 1.0, comp.Metrics["files_matching.optimization"])
	assert.Equal(t, 1.0, comp.Metrics["fact.neural_engine"])
	assert.Equal(t, 1.0, comp.Metrics["fact.multi_language"])
	// 0.2 + 3/50 + 1/5 + 0.25 + 0.1
	assert.InDelta(t, 0.81, comp.Score, 1e-9)
}

func TestAnalyzeComponent_ScriptsGroupsWalkTheirDirectories(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scripts")
	writeFile(t, filepath.Join(dir, "services", "a.ts"), "")
	writeFile(t, filepath.Join(dir, "services", "brand-aware-content", "b.ts"), "")
	writeFile(t, filepath.Join(dir, "validation", "check.js"), "")
	writeFile(t, filepath.Join(dir, "validation", "README.md"), "")

	a := newAnalyzer(t, Options{Root: root})
	comp := a.AnalyzeComponent(context.Background(), findDef(t, "Scripts"))

	assert.Equal(t, 2.0, comp.Metrics["files.services"])
	assert.Equal(t, 1.0, comp.Metrics["files.validation"])
	assert.Equal(t, 1.0, comp.Metrics["files.brand"])
	assert.Equal(t, 1.0, comp.Metrics["fact.brand_content"])
	assert.Equal(t, 0.0, comp.Metrics["fact.quantum_env_bridge"])
}

func TestAnalyzeComponent_MissingSubsystemScoresBase(t *testing.T) {
	a := newAnalyzer(t, Options{Root: t.TempDir()})
	def := findDef(t, "ModelBridge")
	comp := a.AnalyzeComponent(context.Background(), def)

	assert.False(t, comp.Exists)
	assert.Equal(t, def.Formula.Base, comp.Score)
	assert.Empty(t, comp.Artifacts)
	assert.Empty(t, comp.Diagnostics)
}

func TestAnalyzeComponent_UnreadableArtifactIsContained(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	root := t.TempDir()
	dir := filepath.Join(root, "foundation-models")
	writeFile(t, filepath.Join(dir, "index.js"), "function a() {}\n")
	locked := filepath.Join(dir, "package.json")
	writeFile(t, locked, "{}")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	a := newAnalyzer(t, Options{Root: root})
	comp := a.AnalyzeComponent(context.Background(), findDef(t, "Foundation"))

	assert.Equal(t, []string{"index.js"}, comp.Artifacts)
	require.NotEmpty(t, comp.Diagnostics)
	assert.Equal(t, DiagReadError, comp.Diagnostics[0].Kind)
	assert.Equal(t, "package.json", comp.Diagnostics[0].Artifact)
}

func TestAnalyzeComponent_CustomDefinition(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "svc")
	writeFile(t, filepath.Join(dir, "api.go"), "// handler for figma frames\nfunc Handle() {}\n")
	writeFile(t, filepath.Join(dir, "quantum_sim.go"), "// design node\n")

	def := subsystem.Definition{
		Name:       "Service",
		Path:       "svc",
		Extensions: []string{".go"},
		Facts: []subsystem.Fact{
			{Name: "quantum", Glob: "*quantum*"},
			{Name: "figma", Contains: []string{"FIGMA"}},
			{Name: "never", Contains: []string{"kubernetes"}},
		},
		Categories: []pattern.Category{{Name: "design", Keywords: []string{"figma", "design", "node", "frame"}}},
		Formula: scoring.Formula{Base: 0.1, Terms: []scoring.Term{
			{Name: "design", Source: "keywords.design", Divisor: 4, Cap: 0.4},
		}},
	}
	a := newAnalyzer(t, Options{Root: root, Definitions: []subsystem.Definition{def}})
	comp := a.AnalyzeComponent(context.Background(), def)

	assert.Equal(t, 1.0, comp.Metrics["fact.quantum"])
	assert.Equal(t, 1.0, comp.Metrics["fact.figma"])
	assert.Equal(t, 0.0, comp.Metrics["fact.never"])
	assert.Equal(t, 4.0, comp.Metrics["keywords.design"])
	assert.Equal(t, 2.0, comp.Metrics["hits.design"])
	assert.Equal(t, 2.0, comp.Metrics["files_matching.design"])
	assert.InDelta(t, 0.5, comp.Score, 1e-9)
}

func TestRun_AttachesComponentAnalytics(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "foundation-models", "index.js"), "function a() {}\n")

	a := newAnalyzer(t, Options{Root: root})
	r, err := a.Run(context.Background())
	require.NoError(t, err)

	comp, _ := r.Component("Foundation")
	assert.Equal(t, 1.0, comp.Analytics["count"])
	assert.Equal(t, float64(len("function a() {}\n")), comp.Analytics["mean"])
	for k := range r.Strategic.Statistics {
		assert.NotContains(t, k, "file_sizes.", "per-component statistics leaked into strategic block")
	}
}

func TestLookupAndTruthy(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{"b": []any{1.0}, "empty": map[string]any{}},
		"n": 0.0,
		"s": "x",
	}
	tests := []struct {
		path  string
		found bool
		truth bool
	}{
		{"a.b", true, true},
		{"a.empty", true, false},
		{"a.missing", false, false},
		{"n", true, false},
		{"s", true, true},
		{"s.deeper", false, false},
	}
	for _, tc := range tests {
		v, found := lookup(doc, tc.path)
		if found != tc.found {
			t.Errorf("lookup(%q) found = %v, want %v", tc.path, found, tc.found)
			continue
		}
		if found && truthy(v) != tc.truth {
			t.Errorf("truthy(%q) = %v, want %v", tc.path, truthy(v), tc.truth)
		}
	}
}
