package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golopo/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Paths: config.PathConfig{
			CohortDir:   filepath.Join(dir, "cohort"),
			LabelColumn: "label",
			ResultsDir:  filepath.Join(dir, "results"),
		},
		Logging: config.LoggingConfig{Level: "INFO", Format: "json"},
		Run:     config.RunConfig{CodeVersion: "test"},
	}
}

func TestNew_RejectsNilConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestContainer_Sinks(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, c.MetricsServer)

	names := func() []string {
		var out []string
		for _, s := range c.Sinks() {
			out = append(out, s.Name())
		}
		return out
	}
	assert.Equal(t, []string{"json"}, names())

	cfg.Paths.ExcelReport = filepath.Join(t.TempDir(), "report.xlsx")
	c, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"json", "excel"}, names())
	assert.NotNil(t, c.EvaluationService())
}

func TestContainer_RunReaderFallsBackToJSON(t *testing.T) {
	c, err := New(testConfig(t), nil)
	require.NoError(t, err)
	assert.Same(t, c.JSONSink, c.RunReader())
}

func TestContainer_Grid(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg, nil)
	require.NoError(t, err)

	grid, err := c.Grid()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultGrid().Hash(), grid.Hash())

	cfg.Paths.GridFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = c.Grid()
	assert.Error(t, err)
}

func TestContainer_ShutdownWritesTextfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "lopo.prom")
	c, err := New(cfg, nil)
	require.NoError(t, err)

	c.Recorder.ObserveRun("success")
	require.NoError(t, c.Shutdown(context.Background()))

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lopo_runs_total")
}

func TestOpenDatabase_RequiresURL(t *testing.T) {
	_, err := OpenDatabase(config.DatabaseConfig{})
	assert.Error(t, err)
}
