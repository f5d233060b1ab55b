package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COHORT_DIR", "/data/patients")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/patients", cfg.Paths.CohortDir)
	assert.Equal(t, "label", cfg.Paths.LabelColumn)
	assert.Equal(t, "./results", cfg.Paths.ResultsDir)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_RejectsBadLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	assert.Contains(t, err.Error(), "Format")
}

func TestValidate_Overrides(t *testing.T) {
	cfg := FromEnv()
	cfg.Paths.ResultsDir = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ResultsDir")
}

func TestDefaultGrid(t *testing.T) {
	g := DefaultGrid()
	require.NoError(t, g.Validate())
	assert.Equal(t, []int{2, 4, 8, 16, 24, 32, 36}, g.Dimensionalities)
	assert.Equal(t, 100, g.Configurations[0].Estimators)
	assert.Equal(t, 48, g.Configurations[0].Jobs)
	assert.Equal(t, evaluation.LabelPair{Negative: 0, Positive: 255}, g.Labels)
}

const gridYAML = `
configurations:
  - name: rf-small
    classifier: random-forest
    n_estimators: 50
    n_jobs: 8
    params:
      max_depth: 6
  - name: lr
    classifier: logistic-regression
    params:
      C: 0.5
dimensionalities: [2, 4]
kernel:
  name: poly
  degree: 2
on_projection_error: skip
`

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid(strings.NewReader(gridYAML))
	require.NoError(t, err)

	require.Len(t, g.Configurations, 2)
	assert.Equal(t, "rf-small", g.Configurations[0].Name)
	assert.Equal(t, "random-forest", g.Configurations[0].Family)
	assert.Equal(t, 50, g.Configurations[0].Estimators)
	assert.Equal(t, 6.0, g.Configurations[0].Param("max_depth", 0))
	assert.Equal(t, 0.5, g.Configurations[1].Param("C", 1))
	assert.Equal(t, []int{2, 4}, g.Dimensionalities)
	assert.Equal(t, evaluation.KernelPolynomial, g.Kernel.Name)
	assert.Equal(t, 2, g.Kernel.Degree)
	assert.Equal(t, evaluation.PolicySkip, g.Policy())
	assert.Equal(t, evaluation.LabelPair{Negative: 0, Positive: 255}, g.Labels, "labels keep their default")
}

func TestParseGrid_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":       "configurations: [{name: a, classifier: random-forest}]\ndimensionalities: [2]\nshuffle: true\n",
		"empty":             "",
		"no configurations": "dimensionalities: [2]\n",
		"negative dim":      "configurations: [{name: a, classifier: random-forest}]\ndimensionalities: [-2]\n",
		"bad kernel":        "configurations: [{name: a, classifier: random-forest}]\ndimensionalities: [2]\nkernel: {name: laplace}\n",
		"bad policy":        "configurations: [{name: a, classifier: random-forest}]\ndimensionalities: [2]\non_projection_error: retry\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGrid(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, errors.GetCode(err) == errors.CodeConfigInvalid || core.IsValidationError(err), "got %v", err)
		})
	}
}

func TestLoadGrid_RoundTripsThroughFile(t *testing.T) {
	g, err := LoadGrid("")
	require.NoError(t, err)

	data, err := MarshalGrid(g)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadGrid(path)
	require.NoError(t, err)
	assert.Equal(t, g.Hash(), loaded.Hash())

	_, err = LoadGrid(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
