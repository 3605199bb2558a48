package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/blackwell-systems/projectlens/internal/capability"
)

const (
	// DefaultRemoteTimeout bounds a single remote call.
	DefaultRemoteTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a remote response is read.
	maxResponseBytes = 1 << 20
)

// RemoteConfig configures the remote analytics provider.
type RemoteConfig struct {
	Endpoint string
	APIKey   string

	// Timeout bounds each call. Zero means DefaultRemoteTimeout.
	Timeout time.Duration

	// RatePerSecond limits outgoing calls. Zero or less means unlimited.
	RatePerSecond float64

	// Client overrides the HTTP client, for tests.
	Client *http.Client
}

// Remote posts requests to an external analytics service.
type Remote struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewRemote creates a remote provider.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Remote{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (r *Remote) Name() string { return EngineRemote }

// Available requires both the capability flag and a complete configuration.
func (r *Remote) Available(flags capability.Flags) bool {
	return flags.RemoteConfigured &&
		strings.TrimSpace(r.cfg.Endpoint) != "" &&
		strings.TrimSpace(r.cfg.APIKey) != ""
}

type remoteResponse struct {
	Engine     string             `json:"engine"`
	Statistics map[string]float64 `json:"statistics"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r *Remote) Analyze(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("waiting for rate limit: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("x-api-key", r.cfg.APIKey)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("analytics service returned status %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}

	var out remoteResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return Result{}, fmt.Errorf("unmarshaling response: %w", err)
	}
	if out.Error != nil {
		return Result{}, fmt.Errorf("analytics service error: %s: %s", out.Error.Type, out.Error.Message)
	}
	if out.Statistics == nil {
		return Result{}, fmt.Errorf("analytics service returned no statistics")
	}

	return Result{
		Engine:     EngineRemote,
		Operation:  req.Operation,
		Statistics: out.Statistics,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
