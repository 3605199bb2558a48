package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/projectlens/internal/capability"
)

// Provider names.
const (
	EngineAccelerated = "accelerated"
	EngineRemote      = "remote"
	EngineLocal       = "local"
)

// Local computes statistics sequentially in process. It is always available
// and never fails for a valid request.
type Local struct{}

func (Local) Name() string { return EngineLocal }
func (Local) Available(capability.Flags) bool { return true }

func (Local) Analyze(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	names := req.FeatureNames()
	per := make([]map[string]float64, len(names))
	for i, name := range names {
		per[i] = featureStats(req.Operation, req.Features[name])
	}
	return Result{
		Engine:     EngineLocal,
		Operation:  req.Operation,
		Statistics: combine(req.Operation, names, per, req.Features),
	}, nil
}

// Accelerated computes each feature on its own goroutine. It is only offered
// on hosts reporting hardware acceleration and produces the same statistics
// as Local.
type Accelerated struct {
	// Workers bounds concurrency. Zero means one goroutine per feature.
	Workers int
}

func (Accelerated) Name() string { return EngineAccelerated }

func (Accelerated) Available(flags capability.Flags) bool { return flags.Accelerated }

func (a Accelerated) Analyze(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	names := req.FeatureNames()
	per := make([]map[string]float64, len(names))

	g, gctx := errgroup.WithContext(ctx)
	if a.Workers > 0 {
		g.SetLimit(a.Workers)
	}
	for i, name := range names {
		values := req.Features[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			per[i] = featureStats(req.Operation, values)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return Result{
		Engine:     EngineAccelerated,
		Operation:  req.Operation,
		Statistics: combine(req.Operation, names, per, req.Features),
	}, nil
}
