package testkit

import (
	"context"
	"testing"

	"golopo/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCohortGenerator_Deterministic(t *testing.T) {
	config := DefaultCohortConfig()
	g1, err := NewCohortGenerator(config)
	require.NoError(t, err)
	g2, err := NewCohortGenerator(config)
	require.NoError(t, err)

	s1, err := g1.Store()
	require.NoError(t, err)
	s2, err := g2.Store()
	require.NoError(t, err)

	assert.Equal(t, s1.Hash(), s2.Hash())
	for i := 0; i < s1.Len(); i++ {
		assert.True(t, mat.Equal(s1.At(i).Features(), s2.At(i).Features()))
		assert.Equal(t, s1.At(i).Labels(), s2.At(i).Labels())
	}
}

func TestCohortGenerator_PatientsAreStable(t *testing.T) {
	small := DefaultCohortConfig()
	large := small
	large.Patients = small.Patients + 3

	gs, err := NewCohortGenerator(small)
	require.NoError(t, err)
	gl, err := NewCohortGenerator(large)
	require.NoError(t, err)

	ps, err := gs.Patients()
	require.NoError(t, err)
	pl, err := gl.Patients()
	require.NoError(t, err)

	for i := range ps {
		assert.True(t, mat.Equal(ps[i].Features(), pl[i].Features()), "patient %d changed with cohort size", i)
	}
}

func TestCohortGenerator_LabelsAndShape(t *testing.T) {
	config := DefaultCohortConfig()
	kit, err := NewTestKit(config)
	require.NoError(t, err)

	store, err := kit.CohortSource().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.Patients, store.Len())
	assert.Equal(t, config.Timepoints, store.Cols())
	assert.Equal(t, core.PatientID("patient-001"), store.At(0).ID())

	for i := 0; i < store.Len(); i++ {
		p := store.At(i)
		assert.Equal(t, config.Voxels, p.Rows())
		roi := 0
		for _, l := range p.Labels() {
			require.True(t, l == config.Background || l == config.ROI)
			if l == config.ROI {
				roi++
			}
		}
		assert.Equal(t, 12, roi)
	}
}

func TestNewCohortGenerator_Rejects(t *testing.T) {
	bad := DefaultCohortConfig()
	bad.ROIFraction = 1
	_, err := NewCohortGenerator(bad)
	assert.True(t, core.IsValidationError(err))

	bad = DefaultCohortConfig()
	bad.Voxels = 1
	_, err = NewCohortGenerator(bad)
	assert.True(t, core.IsValidationError(err))
}
