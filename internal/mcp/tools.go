package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/blackwell-systems/projectlens/internal/report"
	"github.com/blackwell-systems/projectlens/internal/store"
	"github.com/blackwell-systems/projectlens/internal/suggest"
)

// Sources supplies the data the tools answer from. Nil functions disable the
// tools that need them.
type Sources struct {
	// LoadReport returns the last persisted report.
	LoadReport func(ctx context.Context) (*report.AggregateReport, error)

	// Analyze runs a fresh analysis and saves it. A report returned with a
	// *report.PersistenceError completed but was not saved.
	Analyze func(ctx context.Context) (*report.AggregateReport, error)

	// History returns up to limit recorded runs and the comparison of the
	// latest two (nil with fewer than two runs).
	History func(ctx context.Context, limit int) ([]store.Run, *store.Comparison, error)
}

// SummaryResult is the compact view of a run returned by get_summary and
// run_analysis.
type SummaryResult struct {
	RunID           string                  `json:"run_id"`
	Timestamp       string                  `json:"timestamp"`
	ProjectRoot     string                  `json:"project_root"`
	MeanScore       float64                 `json:"mean_score"`
	Tier            report.Tier             `json:"tier"`
	Engine          string                  `json:"engine"`
	Scores          []ComponentScore        `json:"scores"`
	Recommendations int                     `json:"recommendations"`
	ByPriority      map[report.Priority]int `json:"by_priority,omitempty"`
	Strategic       map[string]float64      `json:"strategic"`
}

// AnalysisResult is returned by run_analysis.
type AnalysisResult struct {
	SummaryResult
	Persisted bool `json:"persisted"`
}

// ComponentScore is one subsystem's line in a summary.
type ComponentScore struct {
	Name   string  `json:"name"`
	Exists bool    `json:"exists"`
	Score  float64 `json:"score"`
}

// RecommendationsResult holds the recommendations at or above a priority.
type RecommendationsResult struct {
	MinPriority     report.Priority         `json:"min_priority"`
	Recommendations []report.Recommendation `json:"recommendations"`
}

// HistoryResult holds recorded runs and the latest comparison.
type HistoryResult struct {
	Runs       []store.Run       `json:"runs"`
	Comparison *store.Comparison `json:"comparison,omitempty"`
}

var (
	noArgsSchema    = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
	componentSchema = json.RawMessage(`{"type":"object","properties":{"name":{"type":"string","description":"Subsystem name, e.g. Foundation"}},"required":["name"],"additionalProperties":false}`)
	prioritySchema  = json.RawMessage(`{"type":"object","properties":{"min_priority":{"type":"string","enum":["CRITICAL","HIGH","MEDIUM"],"description":"Lowest priority to include (default MEDIUM)"}},"additionalProperties":false}`)
	historySchema   = json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer","description":"Number of runs to return (default 5)"}},"additionalProperties":false}`)
)

// addTools registers the tool handlers whose sources are available.
func addTools(s *Server) {
	if s.src.LoadReport != nil {
		s.registerTool(toolDef{
			Name:        "get_summary",
			Description: "Mean sophistication score, readiness tier and per-subsystem scores from the last report.",
			InputSchema: noArgsSchema,
			Handler:     s.handleGetSummary,
		})
		s.registerTool(toolDef{
			Name:        "get_component",
			Description: "Full metric breakdown, term contributions and diagnostics of one subsystem from the last report.",
			InputSchema: componentSchema,
			Handler:     s.handleGetComponent,
		})
		s.registerTool(toolDef{
			Name:        "get_recommendations",
			Description: "Prioritized improvement recommendations from the last report.",
			InputSchema: prioritySchema,
			Handler:     s.handleGetRecommendations,
		})
	}
	if s.src.Analyze != nil {
		s.registerTool(toolDef{
			Name:        "run_analysis",
			Description: "Re-analyze the project now and return the new summary.",
			InputSchema: noArgsSchema,
			Handler:     s.handleRunAnalysis,
		})
	}
	if s.src.History != nil {
		s.registerTool(toolDef{
			Name:        "get_history",
			Description: "Last N recorded runs and the score deltas between the latest two.",
			InputSchema: historySchema,
			Handler:     s.handleGetHistory,
		})
	}
}

func (s *Server) handleGetSummary(ctx context.Context, _ json.RawMessage) (any, error) {
	r, err := s.src.LoadReport(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(r), nil
}

func (s *Server) handleGetComponent(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, errors.New("name is required")
	}

	r, err := s.src.LoadReport(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := r.Component(params.Name)
	if !ok {
		return nil, fmt.Errorf("no subsystem %q (have: %s)", params.Name, strings.Join(r.Order, ", "))
	}
	return c, nil
}

func (s *Server) handleGetRecommendations(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		MinPriority string `json:"min_priority"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	floor := report.PriorityMedium
	if params.MinPriority != "" {
		floor = report.Priority(strings.ToUpper(params.MinPriority))
		if !floor.Valid() {
			return nil, fmt.Errorf("unknown priority %q", params.MinPriority)
		}
	}

	r, err := s.src.LoadReport(ctx)
	if err != nil {
		return nil, err
	}
	out := RecommendationsResult{MinPriority: floor, Recommendations: []report.Recommendation{}}
	for _, rec := range r.Recommendations {
		if rec.Priority.Rank() <= floor.Rank() {
			out.Recommendations = append(out.Recommendations, rec)
		}
	}
	return out, nil
}

func (s *Server) handleRunAnalysis(ctx context.Context, _ json.RawMessage) (any, error) {
	r, err := s.src.Analyze(ctx)
	if r == nil {
		return nil, err
	}
	res := AnalysisResult{SummaryResult: summarize(r), Persisted: err == nil}
	if err != nil {
		return res, fmt.Errorf("analysis finished but the report was not saved: %w", err)
	}
	return res, nil
}

func (s *Server) handleGetHistory(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		N int `json:"n"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if params.N <= 0 {
		params.N = 5
	}

	runs, cmp, err := s.src.History(ctx, params.N)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return HistoryResult{Runs: runs, Comparison: cmp}, nil
}

func summarize(r *report.AggregateReport) SummaryResult {
	out := SummaryResult{
		RunID:           r.RunID,
		Timestamp:       r.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		ProjectRoot:     r.ProjectRoot,
		MeanScore:       r.Summary.MeanScore,
		Tier:            r.Summary.Tier,
		Engine:          r.Strategic.Engine,
		Recommendations: len(r.Recommendations),
		Strategic: map[string]float64{
			"architecture_score":    r.Strategic.ArchitectureScore,
			"integration_readiness": r.Strategic.IntegrationReadiness,
			"deployment_confidence": r.Strategic.DeploymentConfidence,
		},
	}
	for _, c := range r.Ordered() {
		out.Scores = append(out.Scores, ComponentScore{Name: c.Name, Exists: c.Exists, Score: c.Score})
	}
	if len(r.Recommendations) > 0 {
		out.ByPriority = suggest.CountByPriority(r.Recommendations)
	}
	return out
}
