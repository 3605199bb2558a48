package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blackwell-systems/projectlens/internal/config"
	"github.com/blackwell-systems/projectlens/internal/report"
)

func TestMCPCmd_Registered(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "mcp" {
			return
		}
	}
	t.Fatal("mcp subcommand not registered on rootCmd")
}

func TestMCPSources_AnalyzePersistsAndRecords(t *testing.T) {
	root := t.TempDir()
	e := &env{
		cfg: &config.Config{
			ReportPath: "report.json",
			History:    config.History{Enabled: true, Path: filepath.Join(t.TempDir(), "history.db")},
		},
		log: zap.NewNop(),
	}

	n := 0
	analyze := func(ctx context.Context) (*report.AggregateReport, error) {
		n++
		r := &report.AggregateReport{
			RunID:       "run-" + string(rune('0'+n)),
			Timestamp:   time.Now().Add(time.Duration(n) * time.Second),
			ProjectRoot: root,
		}
		r.Assemble([]report.ComponentReport{{Name: "Foundation", Exists: true, Score: 0.2 * float64(n)}})
		return r, nil
	}

	src := mcpSources(e, root, analyze)
	require.NotNil(t, src.History)

	_, err := src.LoadReport(context.Background())
	assert.ErrorContains(t, err, "run_analysis")

	_, err = src.Analyze(context.Background())
	require.NoError(t, err)
	_, err = src.Analyze(context.Background())
	require.NoError(t, err)

	loaded, err := src.LoadReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-2", loaded.RunID)

	runs, cmp, err := src.History(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	require.NotNil(t, cmp)
	assert.InDelta(t, 0.2, cmp.MeanDelta, 1e-9)
}

func TestMCPSources_NoHistoryWhenDisabled(t *testing.T) {
	e := &env{cfg: &config.Config{}, log: zap.NewNop()}
	src := mcpSources(e, t.TempDir(), nil)
	assert.Nil(t, src.History)
	assert.NotNil(t, src.LoadReport)
}

func TestMCPSources_UnsavedReportReachesCaller(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	e := &env{
		cfg: &config.Config{ReportPath: filepath.Join(blocker, "report.json")},
		log: zap.NewNop(),
	}

	analyze := func(ctx context.Context) (*report.AggregateReport, error) {
		r := &report.AggregateReport{RunID: "run-1", ProjectRoot: root}
		r.Assemble([]report.ComponentReport{{Name: "Foundation", Exists: true, Score: 0.5}})
		return r, nil
	}

	src := mcpSources(e, root, analyze)
	r, err := src.Analyze(context.Background())
	require.Error(t, err)
	assert.True(t, report.IsPersistence(err))
	require.NotNil(t, r)
	assert.Equal(t, "run-1", r.RunID)

	_, err = src.LoadReport(context.Background())
	assert.Error(t, err)
}
