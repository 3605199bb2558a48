package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/blackwell-systems/projectlens/internal/report"
)

const runColumns = "id, run_id, taken_at, project_root, version, mean_score, tier, engine, components"

// RecordRun stores a report with its component scores, recommendations and
// strategic statistics in one transaction and returns the row ID.
func (db *DB) RecordRun(r *report.AggregateReport) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs (run_id, taken_at, project_root, version, mean_score, tier, engine, components)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Timestamp.UTC().Format(time.RFC3339Nano), r.ProjectRoot, r.ToolVersion,
		r.Summary.MeanScore, string(r.Summary.Tier), r.Strategic.Engine, r.Summary.ComponentsAnalyzed,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, c := range r.Ordered() {
		if _, err := tx.Exec(
			"INSERT INTO component_scores (run_id, name, present, score, artifacts) VALUES (?, ?, ?, ?, ?)",
			id, c.Name, c.Exists, c.Score, len(c.Artifacts),
		); err != nil {
			return 0, fmt.Errorf("inserting component %s: %w", c.Name, err)
		}
	}

	for i, rec := range r.Recommendations {
		if _, err := tx.Exec(
			"INSERT INTO recommendations (run_id, position, priority, subject, cause, action) VALUES (?, ?, ?, ?, ?, ?)",
			id, i, string(rec.Priority), rec.Subject, rec.Trigger, rec.Action,
		); err != nil {
			return 0, fmt.Errorf("inserting recommendation: %w", err)
		}
	}

	for name, value := range r.Strategic.Statistics {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		if _, err := tx.Exec(
			"INSERT INTO run_statistics (run_id, name, value) VALUES (?, ?, ?)",
			id, name, value,
		); err != nil {
			return 0, fmt.Errorf("inserting statistic %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListRuns returns the most recent runs of a project, newest first. An empty
// project lists runs of every project. A limit <= 0 means no limit.
func (db *DB) ListRuns(project string, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if project != "" {
		query += " WHERE project_root = ?"
		args = append(args, project)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRunN returns the Nth most recent run of a project (1 = latest,
// 2 = previous, etc.), or nil if there is none.
func (db *DB) GetRunN(project string, n int) (*Run, error) {
	row := db.conn.QueryRow(
		"SELECT "+runColumns+" FROM runs WHERE project_root = ? ORDER BY id DESC LIMIT 1 OFFSET ?",
		project, n-1,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// GetRunDetail returns the Nth most recent run of a project with its
// component scores, recommendations and statistics, or nil if there is none.
func (db *DB) GetRunDetail(project string, n int) (*RunDetail, error) {
	run, err := db.GetRunN(project, n)
	if err != nil || run == nil {
		return nil, err
	}
	d := &RunDetail{Run: *run}
	if d.Components, err = db.GetComponentScores(run.ID); err != nil {
		return nil, fmt.Errorf("component scores: %w", err)
	}
	if d.Recommendations, err = db.GetRecommendations(run.ID); err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	if d.Statistics, err = db.GetStatistics(run.ID); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var takenAt string
	if err := row.Scan(&r.ID, &r.RunID, &takenAt, &r.ProjectRoot, &r.Version,
		&r.MeanScore, &r.Tier, &r.Engine, &r.Components); err != nil {
		return nil, err
	}
	r.TakenAt, _ = time.Parse(time.RFC3339Nano, takenAt)
	return &r, nil
}

// GetComponentScores returns the component scores of a run in insertion
// order.
func (db *DB) GetComponentScores(runID int64) ([]ComponentScore, error) {
	rows, err := db.conn.Query(
		"SELECT id, run_id, name, present, score, artifacts FROM component_scores WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComponentScore
	for rows.Next() {
		var c ComponentScore
		if err := rows.Scan(&c.ID, &c.RunID, &c.Name, &c.Exists, &c.Score, &c.Artifacts); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetRecommendations returns the recommendations of a run in their original
// order.
func (db *DB) GetRecommendations(runID int64) ([]Recommendation, error) {
	rows, err := db.conn.Query(
		"SELECT id, run_id, position, priority, subject, cause, action FROM recommendations WHERE run_id = ? ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		var r Recommendation
		if err := rows.Scan(&r.ID, &r.RunID, &r.Position, &r.Priority, &r.Subject, &r.Trigger, &r.Action); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStatistics returns the strategic statistics recorded for a run.
func (db *DB) GetStatistics(runID int64) (map[string]float64, error) {
	rows, err := db.conn.Query("SELECT name, value FROM run_statistics WHERE run_id = ?", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, rows.Err()
}

// PruneRuns deletes all but the newest keep runs of a project and returns
// how many were removed.
func (db *DB) PruneRuns(project string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := db.conn.Exec(
		`DELETE FROM runs WHERE project_root = ? AND id NOT IN (
			SELECT id FROM runs WHERE project_root = ? ORDER BY id DESC LIMIT ?
		)`,
		project, project, keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CompareLatest compares the two most recent runs of a project. It returns
// nil when fewer than two runs exist.
func (db *DB) CompareLatest(project string) (*Comparison, error) {
	current, err := db.GetRunN(project, 1)
	if err != nil || current == nil {
		return nil, err
	}
	previous, err := db.GetRunN(project, 2)
	if err != nil || previous == nil {
		return nil, err
	}

	prevScores, err := db.GetComponentScores(previous.ID)
	if err != nil {
		return nil, err
	}
	curScores, err := db.GetComponentScores(current.ID)
	if err != nil {
		return nil, err
	}
	prevRecs, err := db.GetRecommendations(previous.ID)
	if err != nil {
		return nil, err
	}
	curRecs, err := db.GetRecommendations(current.ID)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		Previous:   *previous,
		Current:    *current,
		MeanDelta:  current.MeanScore - previous.MeanScore,
		TierChange: current.Tier != previous.Tier,
		Components: componentDeltas(prevScores, curScores),
	}
	cmp.Resolved, cmp.New = subjectDiff(prevRecs, curRecs)
	return cmp, nil
}

// componentDeltas pairs components by name, keeping the current run's order
// and appending removed components at the end.
func componentDeltas(prev, cur []ComponentScore) []ComponentDelta {
	prevByName := make(map[string]ComponentScore, len(prev))
	for _, p := range prev {
		prevByName[p.Name] = p
	}

	var out []ComponentDelta
	seen := make(map[string]bool, len(cur))
	for _, c := range cur {
		seen[c.Name] = true
		d := ComponentDelta{Name: c.Name, Current: c.Score}
		if p, ok := prevByName[c.Name]; ok {
			d.Previous = p.Score
		} else {
			d.Added = true
		}
		d.Delta = d.Current - d.Previous
		out = append(out, d)
	}
	for _, p := range prev {
		if !seen[p.Name] {
			out = append(out, ComponentDelta{Name: p.Name, Previous: p.Score, Delta: -p.Score, Removed: true})
		}
	}
	return out
}

func subjectDiff(prev, cur []Recommendation) (resolved, added []string) {
	key := func(r Recommendation) string { return r.Priority + " " + r.Subject }
	prevSet := make(map[string]bool, len(prev))
	for _, r := range prev {
		prevSet[key(r)] = true
	}
	curSet := make(map[string]bool, len(cur))
	for _, r := range cur {
		curSet[key(r)] = true
		if !prevSet[key(r)] {
			added = append(added, key(r))
		}
	}
	for k := range prevSet {
		if !curSet[k] {
			resolved = append(resolved, k)
		}
	}
	sort.Strings(resolved)
	return resolved, added
}
