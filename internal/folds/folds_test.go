package folds

import (
	"fmt"
	"testing"

	"golopo/domain/cohort"
	"golopo/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// buildStore creates n patients whose feature values encode their position so
// stacked rows can be traced back to a patient.
func buildStore(t *testing.T, n, rows, cols int) *cohort.Store {
	t.Helper()
	patients := make([]cohort.Patient, n)
	for p := 0; p < n; p++ {
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = float64(p*1000 + i)
		}
		labels := make([]float64, rows)
		for i := range labels {
			labels[i] = float64((p + i) % 2 * 255)
		}
		rec, err := cohort.NewPatient(core.PatientID(fmt.Sprintf("patient-%02d", p)), mat.NewDense(rows, cols, data), labels)
		require.NoError(t, err)
		patients[p] = rec
	}
	store, err := cohort.NewStore(patients...)
	require.NoError(t, err)
	return store
}

func TestNew_RejectsSmallCohorts(t *testing.T) {
	_, err := New(nil)
	assert.True(t, core.IsValidationError(err))

	for _, n := range []int{0, 1} {
		store := buildStore(t, n, 3, 2)
		_, err := New(store)
		require.Error(t, err, "n=%d", n)
		assert.ErrorIs(t, err, core.ErrInsufficientPatients)
	}
}

func TestGenerator_OneFoldPerPatient(t *testing.T) {
	for n := 2; n <= 7; n++ {
		t.Run(fmt.Sprintf("P=%d", n), func(t *testing.T) {
			store := buildStore(t, n, 3, 2)
			gen, err := New(store)
			require.NoError(t, err)
			assert.Equal(t, n, gen.Len())

			heldOut := make(map[core.PatientID]int)
			count := 0
			for fold := range gen.All() {
				assert.Equal(t, count, fold.Index, "folds must follow enumeration order")
				assert.Equal(t, store.At(count).ID(), fold.Test.ID())
				assert.Len(t, fold.Train, n-1)
				require.NoError(t, fold.CheckLeakage())

				// Training pool is everybody except the held-out patient.
				for _, id := range fold.TrainingIDs() {
					assert.NotEqual(t, fold.Test.ID(), id)
				}
				heldOut[fold.Test.ID()]++
				count++
			}

			assert.Equal(t, n, count)
			for _, id := range store.IDs() {
				assert.Equal(t, 1, heldOut[id], "patient %s must be held out exactly once", id)
			}
		})
	}
}

func TestFold_TrainingSetStacksInOrder(t *testing.T) {
	store := buildStore(t, 3, 2, 2)
	gen, err := New(store)
	require.NoError(t, err)

	fold := gen.At(1)
	x, y := fold.TrainingSet()
	r, c := x.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.Len(t, y, 4)

	// Patient 0 rows then patient 2 rows.
	assert.Equal(t, 0.0, x.At(0, 0))
	assert.Equal(t, 2.0, x.At(1, 0))
	assert.Equal(t, 2000.0, x.At(2, 0))
	assert.Equal(t, 2002.0, x.At(3, 0))

	// No row of the held-out patient leaks into the stacked matrix.
	testX, testY := fold.TestSet()
	tr, _ := testX.Dims()
	assert.Equal(t, 2, tr)
	assert.Len(t, testY, 2)
	for i := 0; i < r; i++ {
		assert.False(t, x.At(i, 0) >= 1000 && x.At(i, 0) < 2000, "row %d comes from the held-out patient", i)
	}
}

func TestFold_CheckLeakage(t *testing.T) {
	store := buildStore(t, 3, 2, 2)
	gen, err := New(store)
	require.NoError(t, err)

	fold := gen.At(0)
	fold.Train = append(fold.Train, fold.Test)
	err = fold.CheckLeakage()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrLeakage)
}

func TestGenerator_AllStopsEarly(t *testing.T) {
	store := buildStore(t, 5, 2, 2)
	gen, err := New(store)
	require.NoError(t, err)

	seen := 0
	for range gen.All() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestFold_TestSetIsACopy(t *testing.T) {
	store := buildStore(t, 2, 2, 2)
	gen, err := New(store)
	require.NoError(t, err)

	x, _ := gen.At(0).TestSet()
	x.Set(0, 0, -1)
	assert.Equal(t, 0.0, store.At(0).Features().At(0, 0))
}
