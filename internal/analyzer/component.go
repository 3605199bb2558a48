package analyzer

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/blackwell-systems/projectlens/internal/pattern"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/scanner"
	"github.com/blackwell-systems/projectlens/internal/scoring"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
)

// Diagnostic kinds recorded on component reports.
const (
	DiagReadError  = "read_error"
	DiagTruncated  = "truncated"
	DiagWalkError  = "walk_error"
	DiagParseError = "parse_error"
)

// componentResult is a component report plus the raw file sizes fed to the
// analytics chain.
type componentResult struct {
	report report.ComponentReport
	sizes  []float64
}

// AnalyzeComponent runs scan, count and score for a single subsystem. It
// never fails: unreadable artifacts become diagnostics and a missing
// subsystem scores its formula base.
func (a *Analyzer) AnalyzeComponent(ctx context.Context, def subsystem.Definition) report.ComponentReport {
	return a.analyze(ctx, def).report
}

func (a *Analyzer) analyze(ctx context.Context, def subsystem.Definition) componentResult {
	log := a.opts.Logger.With(zap.String("subsystem", def.Name))
	root := filepath.Join(a.opts.Root, filepath.FromSlash(def.Path))

	res := scanner.Scan(ctx, root, scanner.Request{
		Artifacts:  def.Artifacts,
		Extensions: def.Extensions,
		Walk:       def.NeedsWalk(),
		Ignore:     def.Ignore,
		MaxBytes:   a.opts.MaxFileBytes,
	})

	m := &metricSet{
		values: map[string]float64{"exists": scoring.Flag(res.Exists)},
		counts: make(map[string]int, len(def.Categories)),
	}
	for _, c := range def.Categories {
		m.counts[c.Name] = 0
	}

	if res.WalkError != "" {
		log.Warn("walk failed", zap.String("artifact", "."), zap.String("error", res.WalkError))
		m.diag(".", DiagWalkError, res.WalkError)
	}

	declared := make(map[string]bool, len(def.Artifacts))
	for _, name := range def.Artifacts {
		declared[filepath.ToSlash(name)] = true
	}

	var texts []string
	var artifacts []string
	var sizes []float64
	for _, art := range res.Artifacts {
		switch art.Status {
		case scanner.StatusMissing:
			log.Debug("artifact missing", zap.String("artifact", art.Name))
			continue
		case scanner.StatusError:
			log.Warn("artifact unreadable", zap.String("artifact", art.Name), zap.String("error", art.Error))
			m.diag(art.Name, DiagReadError, art.Error)
			continue
		}
		if art.Truncated {
			log.Info("artifact truncated", zap.String("artifact", art.Name), zap.Int64("size", art.Size))
			m.diag(art.Name, DiagTruncated, "")
		}

		artifacts = append(artifacts, art.Name)
		if declared[art.Name] {
			m.values["artifacts"]++
			if kind := artifactKind(def.ArtifactKinds, art.Name); kind != "" {
				m.values["artifacts."+kind]++
			}
		} else {
			m.values["sources"]++
		}

		text := art.Content
		texts = append(texts, text)
		sizes = append(sizes, float64(art.Size))
		m.values["lines"] += float64(pattern.Lines(text))
		for name, n := range pattern.Count(text, def.Categories) {
			m.counts[name] += n
			if n > 0 {
				m.values["files_matching."+name]++
			}
		}

		if def.FileFormula != nil && fileScored(def.FileFormula, art.Name) {
			m.fileScore(fileScore(def.FileFormula.Formula, def.Categories, text))
		}
	}

	for _, c := range def.Categories {
		m.values["hits."+c.Name] = float64(m.counts[c.Name])
		m.values["keywords."+c.Name] = float64(distinctKeywords(texts, c))
	}

	if res.Files != nil {
		m.values["files"] = float64(len(res.Files))
		if len(sizes) == 0 {
			for _, f := range res.Files {
				sizes = append(sizes, float64(f.Size))
			}
		}
	}

	groups := a.fileGroups(log, root, def, res)
	for name, n := range groups {
		m.values["files."+name] = float64(n)
	}
	m.values["dirs"] = float64(countDirs(root, def.Subdirs))

	for _, f := range def.Facts {
		held, problem := a.evalFact(ctx, root, f, res, texts, groups)
		if problem != nil {
			log.Warn("fact check failed", zap.String("artifact", f.Path), zap.String("fact", f.Name), zap.Error(problem))
			m.diag(f.Path, DiagParseError, problem.Error())
		}
		m.values["fact."+f.Name] = scoring.Flag(held)
	}

	if m.scored > 0 {
		m.values["file_score.avg"] = m.fileSum / float64(m.scored)
		m.values["file_score.max"] = m.fileMax
	}

	score, contribs := def.Formula.Explain(m.values)
	comp := report.ComponentReport{
		Name:        def.Name,
		Path:        def.Path,
		Exists:      res.Exists,
		Artifacts:   artifacts,
		Counts:      m.counts,
		Metrics:     m.values,
		Score:       score,
		Diagnostics: m.diags,
	}
	for _, c := range contribs {
		comp.Contributions = append(comp.Contributions, report.Contribution{Term: c.Term, Value: c.Value})
	}
	if comp.Artifacts == nil {
		comp.Artifacts = []string{}
	}

	log.Debug("component scored",
		zap.Bool("exists", comp.Exists),
		zap.Int("artifacts", len(comp.Artifacts)),
		zap.Float64("score", comp.Score))
	return componentResult{report: comp, sizes: sizes}
}

// metricSet accumulates the metrics of one component.
type metricSet struct {
	values map[string]float64
	counts map[string]int
	diags  []report.Diagnostic

	scored  int
	fileSum float64
	fileMax float64
}

func (m *metricSet) diag(artifact, kind, msg string) {
	m.diags = append(m.diags, report.Diagnostic{Artifact: artifact, Kind: kind, Message: msg})
}

func (m *metricSet) fileScore(s float64) {
	m.scored++
	m.fileSum += s
	if s > m.fileMax {
		m.fileMax = s
	}
}

// fileScore scores a single file with the per-file formula. The file's own
// lines and category hits are its metrics.
func fileScore(f scoring.Formula, categories []pattern.Category, text string) float64 {
	metrics := map[string]float64{"lines": float64(pattern.Lines(text))}
	for name, n := range pattern.Count(text, categories) {
		metrics["hits."+name] = float64(n)
	}
	return f.Score(metrics)
}

func fileScored(ff *subsystem.FileFormula, name string) bool {
	return len(ff.Extensions) == 0 || scanner.HasExtension(name, ff.Extensions)
}

// artifactKind returns the first kind whose substrings occur in name.
func artifactKind(kinds []subsystem.ArtifactKind, name string) string {
	lower := strings.ToLower(name)
	for _, k := range kinds {
		for _, sub := range k.NameContains {
			if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
				return k.Name
			}
		}
	}
	return ""
}

// distinctKeywords counts the category keywords found in any of texts.
func distinctKeywords(texts []string, c pattern.Category) int {
	seen := make(map[string]bool)
	for _, t := range texts {
		for _, k := range pattern.Keywords(t, c) {
			seen[k] = true
		}
	}
	return len(seen)
}

// fileGroups counts the files of every group. Groups are filtered from the
// subsystem walk when there was one, otherwise their directory is walked.
func (a *Analyzer) fileGroups(log *zap.Logger, root string, def subsystem.Definition, res scanner.Result) map[string]int {
	out := make(map[string]int, len(def.FileGroups))
	for _, g := range def.FileGroups {
		dir := strings.Trim(filepath.ToSlash(g.Dir), "/")
		var files []scanner.File
		if res.Files != nil {
			prefix := ""
			if dir != "" {
				prefix = dir + "/"
			}
			for _, f := range res.Files {
				if strings.HasPrefix(f.Rel, prefix) {
					files = append(files, f)
				}
			}
		} else if res.Exists {
			walked, err := scanner.Walk(filepath.Join(root, filepath.FromSlash(dir)), scanner.WalkOptions{Ignore: def.Ignore})
			if err != nil {
				log.Warn("group walk failed", zap.String("artifact", g.Dir), zap.String("group", g.Name), zap.Error(err))
			}
			files = walked
		}

		n := 0
		for _, f := range files {
			if len(g.Extensions) == 0 || scanner.HasExtension(f.Rel, g.Extensions) {
				n++
			}
		}
		out[g.Name] = n
	}
	return out
}

// countDirs counts how many of the expected child directories exist.
func countDirs(root string, dirs []string) int {
	n := 0
	for _, d := range dirs {
		if isDir(filepath.Join(root, filepath.FromSlash(d))) {
			n++
		}
	}
	return n
}
