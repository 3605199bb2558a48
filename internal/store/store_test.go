package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/blackwell-systems/projectlens/internal/report"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func makeReport(runID, root string, scores map[string]float64, recs ...report.Recommendation) *report.AggregateReport {
	r := &report.AggregateReport{
		RunID:       runID,
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ToolVersion: "test",
		ProjectRoot: root,
		Components:  make(map[string]report.ComponentReport),
		Strategic: report.Strategic{
			Engine:     "local",
			Statistics: map[string]float64{"scores.mean": 0.5, "scores.bad": math.NaN()},
		},
		Recommendations: recs,
	}
	var comps []report.ComponentReport
	for _, name := range []string{"Foundation", "Analytics", "Portal"} {
		s, ok := scores[name]
		if !ok {
			continue
		}
		comps = append(comps, report.ComponentReport{
			Name:      name,
			Exists:    s > 0.3,
			Artifacts: []string{"a", "b"},
			Score:     s,
		})
	}
	r.Assemble(comps)
	return r
}

func TestRecordRun_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	r := makeReport("run-1", "/p", map[string]float64{"Foundation": 0.9, "Analytics": 0.3},
		report.Recommendation{Priority: report.PriorityHigh, Subject: "Analytics", Trigger: "low", Action: "fix"})

	id, err := db.RecordRun(r)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := db.GetRunN("/p", 1)
	if err != nil {
		t.Fatalf("GetRunN: %v", err)
	}
	if got == nil || got.ID != id {
		t.Fatalf("GetRunN = %+v, want id %d", got, id)
	}
	if got.RunID != "run-1" || got.Engine != "local" || got.Components != 2 {
		t.Errorf("unexpected run: %+v", got)
	}
	if math.Abs(got.MeanScore-0.6) > 1e-9 {
		t.Errorf("MeanScore = %v, want 0.6", got.MeanScore)
	}
	if got.Tier != string(r.Summary.Tier) {
		t.Errorf("Tier = %q, want %q", got.Tier, r.Summary.Tier)
	}
	if !got.TakenAt.Equal(r.Timestamp) {
		t.Errorf("TakenAt = %v, want %v", got.TakenAt, r.Timestamp)
	}

	scores, err := db.GetComponentScores(id)
	if err != nil {
		t.Fatalf("GetComponentScores: %v", err)
	}
	want := []ComponentScore{
		{RunID: id, Name: "Foundation", Exists: true, Score: 0.9, Artifacts: 2},
		{RunID: id, Name: "Analytics", Exists: false, Score: 0.3, Artifacts: 2},
	}
	if diff := cmp.Diff(want, scores, cmpIgnoreID); diff != "" {
		t.Errorf("component scores mismatch (-want +got):\n%s", diff)
	}

	recs, err := db.GetRecommendations(id)
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}
	if len(recs) != 1 || recs[0].Priority != "HIGH" || recs[0].Trigger != "low" || recs[0].Action != "fix" {
		t.Errorf("recommendations = %+v", recs)
	}

	stats, err := db.GetStatistics(id)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if diff := cmp.Diff(map[string]float64{"scores.mean": 0.5}, stats); diff != "" {
		t.Errorf("statistics mismatch (-want +got):\n%s", diff)
	}
}

var cmpIgnoreID = cmp.Transformer("zeroID", func(c ComponentScore) ComponentScore {
	c.ID = 0
	return c
})

func TestRecordRun_DuplicateRunIDRollsBack(t *testing.T) {
	db := openTestDB(t)
	r := makeReport("dup", "/p", map[string]float64{"Foundation": 0.5})
	if _, err := db.RecordRun(r); err != nil {
		t.Fatalf("first RecordRun: %v", err)
	}
	if _, err := db.RecordRun(r); err == nil {
		t.Fatal("expected unique constraint error on duplicate run id")
	}

	runs, err := db.ListRuns("/p", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs, want 1", len(runs))
	}
}

func TestListRuns_NewestFirstAndFiltered(t *testing.T) {
	db := openTestDB(t)
	for _, rr := range []struct{ id, root string }{
		{"r1", "/a"}, {"r2", "/b"}, {"r3", "/a"}, {"r4", "/a"},
	} {
		if _, err := db.RecordRun(makeReport(rr.id, rr.root, map[string]float64{"Foundation": 0.5})); err != nil {
			t.Fatalf("RecordRun %s: %v", rr.id, err)
		}
	}

	runs, err := db.ListRuns("/a", 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.RunID)
	}
	if diff := cmp.Diff([]string{"r4", "r3"}, ids); diff != "" {
		t.Errorf("run ids mismatch (-want +got):\n%s", diff)
	}

	all, err := db.ListRuns("", 0)
	if err != nil {
		t.Fatalf("ListRuns all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d runs, want 4", len(all))
	}
}

func TestGetRunN_Absent(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetRunN("/nowhere", 1)
	if err != nil {
		t.Fatalf("GetRunN: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil run, got %+v", got)
	}
}

func TestGetRunDetail(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.RecordRun(makeReport("old", "/p", map[string]float64{"Foundation": 0.2})); err != nil {
		t.Fatal(err)
	}
	r := makeReport("new", "/p", map[string]float64{"Foundation": 0.8, "Portal": 0.1},
		report.Recommendation{Priority: report.PriorityCritical, Subject: "Portal", Trigger: "missing"})
	if _, err := db.RecordRun(r); err != nil {
		t.Fatal(err)
	}

	d, err := db.GetRunDetail("/p", 1)
	if err != nil {
		t.Fatalf("GetRunDetail: %v", err)
	}
	if d == nil || d.Run.RunID != "new" {
		t.Fatalf("GetRunDetail = %+v", d)
	}
	if len(d.Components) != 2 || d.Components[1].Name != "Portal" {
		t.Errorf("components = %+v", d.Components)
	}
	if len(d.Recommendations) != 1 || d.Recommendations[0].Subject != "Portal" {
		t.Errorf("recommendations = %+v", d.Recommendations)
	}
	if _, ok := d.Statistics["scores.bad"]; ok {
		t.Error("non-finite statistic should not be stored")
	}

	if d, err := db.GetRunDetail("/p", 3); err != nil || d != nil {
		t.Errorf("GetRunDetail(3) = %+v, %v; want nil, nil", d, err)
	}
}

func TestCompareLatest(t *testing.T) {
	db := openTestDB(t)

	cmpResult, err := db.CompareLatest("/p")
	if err != nil {
		t.Fatalf("CompareLatest on empty db: %v", err)
	}
	if cmpResult != nil {
		t.Fatal("expected nil comparison with no runs")
	}

	first := makeReport("r1", "/p", map[string]float64{"Foundation": 0.5, "Analytics": 0.4},
		report.Recommendation{Priority: report.PriorityHigh, Subject: "Foundation"},
		report.Recommendation{Priority: report.PriorityMedium, Subject: "Analytics"})
	second := makeReport("r2", "/p", map[string]float64{"Foundation": 0.9, "Portal": 0.7},
		report.Recommendation{Priority: report.PriorityMedium, Subject: "Analytics"},
		report.Recommendation{Priority: report.PriorityCritical, Subject: "Portal"})

	if _, err := db.RecordRun(first); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if cmpResult, err = db.CompareLatest("/p"); err != nil || cmpResult != nil {
		t.Fatalf("CompareLatest with one run = %+v, %v; want nil, nil", cmpResult, err)
	}
	if _, err := db.RecordRun(second); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	got, err := db.CompareLatest("/p")
	if err != nil {
		t.Fatalf("CompareLatest: %v", err)
	}
	if got.Previous.RunID != "r1" || got.Current.RunID != "r2" {
		t.Errorf("compared %s -> %s, want r1 -> r2", got.Previous.RunID, got.Current.RunID)
	}
	if math.Abs(got.MeanDelta-0.35) > 1e-9 {
		t.Errorf("MeanDelta = %v, want 0.35", got.MeanDelta)
	}

	wantDeltas := []ComponentDelta{
		{Name: "Foundation", Previous: 0.5, Current: 0.9, Delta: 0.4},
		{Name: "Portal", Current: 0.7, Delta: 0.7, Added: true},
		{Name: "Analytics", Previous: 0.4, Delta: -0.4, Removed: true},
	}
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(wantDeltas, got.Components, approx); diff != "" {
		t.Errorf("component deltas mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"HIGH Foundation"}, got.Resolved); diff != "" {
		t.Errorf("resolved mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"CRITICAL Portal"}, got.New); diff != "" {
		t.Errorf("new mismatch (-want +got):\n%s", diff)
	}
}

func TestPruneRuns_CascadesChildren(t *testing.T) {
	db := openTestDB(t)
	var ids []int64
	for _, id := range []string{"r1", "r2", "r3"} {
		rowID, err := db.RecordRun(makeReport(id, "/p", map[string]float64{"Foundation": 0.5},
			report.Recommendation{Priority: report.PriorityHigh, Subject: "Foundation"}))
		if err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
		ids = append(ids, rowID)
	}

	n, err := db.PruneRuns("/p", 1)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d runs, want 2", n)
	}

	scores, err := db.GetComponentScores(ids[0])
	if err != nil {
		t.Fatalf("GetComponentScores: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("pruned run still has %d component scores", len(scores))
	}
	latest, err := db.GetRunN("/p", 1)
	if err != nil || latest == nil || latest.RunID != "r3" {
		t.Errorf("latest after prune = %+v, %v; want r3", latest, err)
	}
}

func TestOpen_CreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.RecordRun(makeReport("r1", "/p", map[string]float64{"Foundation": 0.5})); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	// Reopening runs migrations again without error.
	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	runs, err := db2.ListRuns("/p", 0)
	if err != nil || len(runs) != 1 {
		t.Errorf("ListRuns after reopen = %d runs, %v", len(runs), err)
	}
}

func TestMigrate_ReachesCurrentVersionOnce(t *testing.T) {
	db := openTestDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != currentSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", v, currentSchemaVersion)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var rows int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("schema_version rows = %d, want 1", rows)
	}

	var idx int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_runs_project_recent'`).Scan(&idx); err != nil {
		t.Fatal(err)
	}
	if idx != 1 {
		t.Error("expected idx_runs_project_recent after migration")
	}
	if db.Path() != ":memory:" {
		t.Errorf("Path() = %q", db.Path())
	}
}
