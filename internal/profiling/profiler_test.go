package profiling

import (
	"testing"

	"golopo/domain/cohort"
	"golopo/domain/core"
	"golopo/domain/evaluation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func patient(t *testing.T, id string, data []float64, labels []float64) cohort.Patient {
	t.Helper()
	p, err := cohort.NewPatient(core.PatientID(id), mat.NewDense(len(labels), 2, data), labels)
	require.NoError(t, err)
	return p
}

func TestProfiler_Profile(t *testing.T) {
	store, err := cohort.NewStore(
		patient(t, "a", []float64{1, 5, 2, 5, 3, 5}, []float64{0, 255, 0}),
		patient(t, "b", []float64{4, 5, 100, 5}, []float64{0, 0}),
	)
	require.NoError(t, err)

	profile, err := NewProfiler(evaluation.LabelPair{Negative: 0, Positive: 255}).Profile(store)
	require.NoError(t, err)

	assert.Equal(t, 5, profile.Rows)
	assert.Equal(t, 4, profile.Negatives)
	assert.Equal(t, 1, profile.Positives)
	assert.False(t, profile.Patients[0].SingleClass())
	assert.True(t, profile.Patients[1].SingleClass())

	first := profile.Features[0]
	assert.InDelta(t, 22.0, first.Mean, 1e-12)
	assert.Equal(t, 1.0, first.Min)
	assert.Equal(t, 100.0, first.Max)
	assert.Equal(t, 3.0, first.Median)
	assert.Greater(t, first.Skewness, 0.0)
	assert.False(t, first.Constant)

	assert.True(t, profile.Features[1].Constant)

	warnings := profile.Warnings()
	assert.Equal(t, []string{
		"patient b has a single class; its folds have no AUC",
		"feature 1 is constant across the cohort",
	}, warnings)
}

func TestProfiler_CountsUnknownLabels(t *testing.T) {
	store, err := cohort.NewStore(patient(t, "a", []float64{1, 2, 3, 4}, []float64{0, 128}))
	require.NoError(t, err)

	profile, err := NewProfiler(evaluation.LabelPair{Negative: 0, Positive: 255}).Profile(store)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Patients[0].Unknown)
	assert.Contains(t, profile.Warnings()[0], "outside the pair")
}

func TestProfiler_RejectsEmpty(t *testing.T) {
	_, err := NewProfiler(evaluation.LabelPair{Negative: 0, Positive: 1}).Profile(nil)
	assert.Error(t, err)
}

func TestDetectOutliers(t *testing.T) {
	assert.Equal(t, 1, detectOutliers([]float64{1, 2, 3, 4, 100}, 2, 4))
	assert.Equal(t, 0, detectOutliers([]float64{1, 2, 3}, 1, 3))
}
