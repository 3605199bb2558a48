// Package analytics computes summary statistics over numeric feature arrays
// through a prioritized chain of providers that ends in a deterministic local
// computation.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/blackwell-systems/projectlens/internal/capability"
)

// Operation selects which statistics a provider computes.
type Operation string

const (
	OpComprehensive Operation = "comprehensive"
	OpEigen         Operation = "eigenanalysis"
	OpSVD           Operation = "svd_analysis"
)

// ParseOperation validates an operation tag. An empty string means
// OpComprehensive.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case "":
		return OpComprehensive, nil
	case OpComprehensive, OpEigen, OpSVD:
		return Operation(s), nil
	default:
		return "", fmt.Errorf("unknown analytics operation %q (want comprehensive, eigenanalysis or svd_analysis)", s)
	}
}

// Request is the input to every provider.
type Request struct {
	Operation Operation            `json:"operation"`
	Features  map[string][]float64 `json:"features"`
}

// Validate checks the operation tag.
func (r Request) Validate() error {
	if _, err := ParseOperation(string(r.Operation)); err != nil {
		return err
	}
	if r.Operation == "" {
		return errors.New("analytics request has no operation")
	}
	return nil
}

// FeatureNames returns the feature keys in sorted order.
func (r Request) FeatureNames() []string {
	names := make([]string, 0, len(r.Features))
	for name := range r.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result is what a provider returns.
type Result struct {
	Engine     string             `json:"engine"`
	Operation  Operation          `json:"operation"`
	Statistics map[string]float64 `json:"statistics"`
}

// Provider is one analytics backend.
type Provider interface {
	// Name identifies the provider in results and logs.
	Name() string

	// Available reports whether the provider can run on this host.
	Available(flags capability.Flags) bool

	// Analyze computes statistics for req. It must honour ctx cancellation.
	Analyze(ctx context.Context, req Request) (Result, error)
}

// ErrUnavailable is returned when no provider in a chain could serve a
// request.
var ErrUnavailable = errors.New("analytics unavailable")

// ProviderError wraps a failure of a single provider attempt.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("analytics provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StrategicScores derives the project-level readiness block from a mean
// component score.
func StrategicScores(mean float64) (architecture, integration, deployment float64) {
	architecture = mean * 1.2
	if architecture > 1 {
		architecture = 1
	}
	return architecture, mean, mean * 0.9
}
