package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/projectlens/internal/capability"
)

// DefaultAttemptTimeout bounds each provider attempt in a chain.
const DefaultAttemptTimeout = 15 * time.Second

// Attempt records one provider that was tried and failed.
type Attempt struct {
	Provider string
	Err      error
}

// Outcome is the result of a chain run.
type Outcome struct {
	Result Result

	// Failed lists the providers that were tried before Result was obtained.
	Failed []Attempt

	// Skipped lists providers not available on this host.
	Skipped []string
}

// Fallback reports whether a higher-priority provider failed.
func (o Outcome) Fallback() bool { return len(o.Failed) > 0 }

// Errors returns the failure messages of the failed attempts.
func (o Outcome) Errors() []string {
	out := make([]string, 0, len(o.Failed))
	for _, a := range o.Failed {
		out = append(out, a.Err.Error())
	}
	return out
}

// Chain tries providers in priority order until one succeeds. Every attempt
// runs under its own timeout, and errors and panics are contained to the
// attempt that raised them.
type Chain struct {
	providers []Provider
	flags     capability.Flags
	timeout   time.Duration
	logger    *zap.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithAttemptTimeout overrides DefaultAttemptTimeout.
func WithAttemptTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for contained failures.
func WithLogger(l *zap.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChain creates a chain over providers, highest priority first.
func NewChain(flags capability.Flags, providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		flags:     flags,
		timeout:   DefaultAttemptTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultProviders returns the standard priority order: accelerated, remote,
// then local.
func DefaultProviders(remote RemoteConfig) []Provider {
	return []Provider{
		Accelerated{},
		NewRemote(remote),
		Local{},
	}
}

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Analyze runs req through the chain. It returns ErrUnavailable only when
// every available provider failed; a chain ending in Local never does so
// for a valid request.
func (c *Chain) Analyze(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome
	if err := req.Validate(); err != nil {
		return out, err
	}

	for _, p := range c.providers {
		if !p.Available(c.flags) {
			out.Skipped = append(out.Skipped, p.Name())
			continue
		}
		res, err := c.attempt(ctx, p, req)
		if err == nil {
			out.Result = res
			if out.Fallback() {
				c.logger.Info("analytics fell back",
					zap.String("engine", p.Name()),
					zap.Int("failed_providers", len(out.Failed)))
			}
			return out, nil
		}
		pe := &ProviderError{Provider: p.Name(), Err: err}
		out.Failed = append(out.Failed, Attempt{Provider: p.Name(), Err: pe})
		c.logger.Warn("analytics provider failed",
			zap.String("provider", p.Name()),
			zap.String("operation", string(req.Operation)),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	errs := make([]error, 0, len(out.Failed)+1)
	errs = append(errs, ErrUnavailable)
	for _, a := range out.Failed {
		errs = append(errs, a.Err)
	}
	return out, errors.Join(errs...)
}

// attempt calls one provider with a bounded context and converts a panic
// into an error.
func (c *Chain) attempt(ctx context.Context, p Provider, req Request) (res Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	res, err = p.Analyze(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if res.Engine == "" {
		res.Engine = p.Name()
	}
	return res, nil
}
