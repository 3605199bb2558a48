// Package analyzer runs the scan, count and score pipeline of every
// configured subsystem and assembles the aggregate report of a run.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/projectlens/internal/analytics"
	"github.com/blackwell-systems/projectlens/internal/capability"
	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/scanner"
	"github.com/blackwell-systems/projectlens/internal/scoring"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
	"github.com/blackwell-systems/projectlens/internal/suggest"
)

// DefaultConcurrency bounds how many subsystem pipelines run at once.
const DefaultConcurrency = 4

// Feature names sent to the analytics chain.
const (
	featureScores    = "scores"
	featureFileSizes = "file_sizes"
)

// Options configures an Analyzer.
type Options struct {
	// Root is the project root every subsystem path is relative to.
	Root string

	// Definitions is the subsystem profile. Nil means subsystem.Default().
	Definitions []subsystem.Definition

	// Flags is the capability snapshot taken at process start.
	Flags capability.Flags

	// Chain computes the strategic analytics. Nil means a local-only chain.
	Chain *analytics.Chain

	// Operation is the analytics operation. Empty means comprehensive.
	Operation analytics.Operation

	MaxFileBytes int64
	Concurrency  int

	Logger  *zap.Logger
	Version string

	// Now is the clock used for the report timestamp.
	Now func() time.Time
}

// Analyzer runs one or more analysis passes over a project.
type Analyzer struct {
	opts   Options
	engine *suggest.Engine
}

// New validates opts and fills in defaults.
func New(opts Options) (*Analyzer, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New("project root is required")
	}
	if opts.Definitions == nil {
		opts.Definitions = subsystem.Default()
	}
	if err := subsystem.ValidateAll(opts.Definitions); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	op, err := analytics.ParseOperation(string(opts.Operation))
	if err != nil {
		return nil, err
	}
	opts.Operation = op

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = scanner.DefaultMaxBytes
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Chain == nil {
		opts.Chain = analytics.NewChain(opts.Flags, []analytics.Provider{analytics.Local{}},
			analytics.WithLogger(opts.Logger))
	}

	return &Analyzer{
		opts:   opts,
		engine: suggest.NewEngine(opts.Definitions),
	}, nil
}

// Definitions returns the active profile.
func (a *Analyzer) Definitions() []subsystem.Definition { return a.opts.Definitions }

// Run analyzes every subsystem, waits for all of them, then aggregates,
// computes strategic analytics and generates recommendations. Component
// failures are contained in their reports; Run only fails when ctx is
// cancelled.
func (a *Analyzer) Run(ctx context.Context) (*report.AggregateReport, error) {
	defs := a.opts.Definitions
	results := make([]componentResult, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, def := range defs {
		g.Go(func() error {
			results[i] = a.analyze(gctx, def)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	// Strategic analytics attach per-component statistics, so the component
	// reports are collected only after it ran.
	strategic := a.strategic(ctx, results)
	comps := make([]report.ComponentReport, len(results))
	for i, r := range results {
		comps[i] = r.report
	}

	r := &report.AggregateReport{
		RunID:                 uuid.NewString(),
		Timestamp:             a.opts.Now().UTC(),
		ToolVersion:           a.opts.Version,
		ProjectRoot:           a.opts.Root,
		AccelerationAvailable: a.opts.Flags.Accelerated,
		Capabilities:          a.opts.Flags,
	}
	r.Strategic = strategic
	r.Assemble(comps)
	r.Recommendations = a.engine.Run(&suggest.AnalysisContext{Report: r})

	a.opts.Logger.Info("analysis complete",
		zap.String("run_id", r.RunID),
		zap.Int("components", r.Summary.ComponentsAnalyzed),
		zap.Float64("mean_score", r.Summary.MeanScore),
		zap.String("tier", string(r.Summary.Tier)),
		zap.String("engine", r.Strategic.Engine),
		zap.Int("recommendations", len(r.Recommendations)))
	return r, nil
}

// strategic runs the analytics chain over the component scores and file
// sizes. Per-component statistics are attached to results in place.
func (a *Analyzer) strategic(ctx context.Context, results []componentResult) report.Strategic {
	scores := make([]float64, 0, len(results))
	features := map[string][]float64{}
	var sum float64
	for _, r := range results {
		scores = append(scores, r.report.Score)
		sum += r.report.Score
		if len(r.sizes) > 0 {
			features[featureFileSizes+"."+r.report.Name] = r.sizes
		}
	}
	features[featureScores] = scores

	var mean float64
	if len(scores) > 0 {
		mean = sum / float64(len(scores))
	}
	s := report.Strategic{RemoteConfigured: a.opts.Flags.RemoteConfigured}
	s.ArchitectureScore, s.IntegrationReadiness, s.DeploymentConfidence = analytics.StrategicScores(mean)

	out, err := a.opts.Chain.Analyze(ctx, analytics.Request{Operation: a.opts.Operation, Features: features})
	s.Fallback = out.Fallback()
	s.Errors = out.Errors()
	if err != nil {
		a.opts.Logger.Warn("strategic analytics unavailable", zap.Error(err))
		if len(s.Errors) == 0 {
			s.Errors = []string{err.Error()}
		}
		return s
	}

	s.Engine = out.Result.Engine
	s.Statistics = make(map[string]float64)
	for k, v := range out.Result.Statistics {
		if !strings.HasPrefix(k, featureFileSizes+".") {
			s.Statistics[k] = v
		}
	}
	for i := range results {
		prefix := featureFileSizes + "." + results[i].report.Name + "."
		for k, v := range out.Result.Statistics {
			if name, ok := strings.CutPrefix(k, prefix); ok {
				if results[i].report.Analytics == nil {
					results[i].report.Analytics = make(map[string]float64)
				}
				results[i].report.Analytics[name] = v
			}
		}
	}

	// A remote service may compute the readiness scores itself.
	overrideScore(&s.ArchitectureScore, s.Statistics, "architecture_score")
	overrideScore(&s.IntegrationReadiness, s.Statistics, "integration_readiness")
	overrideScore(&s.DeploymentConfidence, s.Statistics, "deployment_confidence")
	return s
}

func overrideScore(dst *float64, stats map[string]float64, key string) {
	if v, ok := stats[key]; ok {
		*dst = scoring.Clamp01(v)
	}
}
