package aggregate

import (
	"testing"

	"golopo/domain/core"
	"golopo/domain/evaluation"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() evaluation.Grid {
	return evaluation.Grid{
		Configurations: []evaluation.Configuration{
			{Name: "rf-a", Family: "random-forest"},
			{Name: "rf-b", Family: "random-forest"},
		},
		Dimensionalities: []int{2, 4, 8},
		Labels:           evaluation.LabelPair{Negative: 0, Positive: 255},
	}
}

var testPatients = []core.PatientID{"p1", "p2", "p3", "p4"}

func entry(grid evaluation.Grid, c, d, f int) evaluation.Entry {
	return evaluation.Entry{
		Configuration:           grid.Configurations[c].Name,
		ConfigurationIndex:      c,
		Dimensionality:          grid.Dimensionalities[d],
		DimensionalityIndex:     d,
		EffectiveDimensionality: grid.Dimensionalities[d],
		Fold:                    f,
		Patient:                 testPatients[f].String(),
		Status:                  evaluation.StatusCompleted,
		Result:                  &evaluation.FoldResult{Accuracy: float64(f)},
	}
}

func fill(t *testing.T, b *Builder, grid evaluation.Grid) {
	t.Helper()
	for c := range grid.Configurations {
		for d := range grid.Dimensionalities {
			for f := range testPatients {
				require.NoError(t, b.Append(entry(grid, c, d, f)))
			}
		}
	}
}

func TestBuilder_ShapeIsCxDxP(t *testing.T) {
	grid := testGrid()
	b, err := NewBuilder(grid, testPatients)
	require.NoError(t, err)
	fill(t, b, grid)

	agg, err := b.Complete()
	require.NoError(t, err)

	c, d, p := agg.Shape()
	assert.Equal(t, 2*3*4, agg.Count())
	assert.Equal(t, []int{2, 3, 4}, []int{c, d, p})

	want := &evaluation.Aggregate{
		Configurations:   []string{"rf-a", "rf-b"},
		Dimensionalities: []int{2, 4, 8},
		Patients:         []string{"p1", "p2", "p3", "p4"},
	}
	if diff := cmp.Diff(want, agg, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Entries"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("aggregate axes mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(entry(grid, 1, 2, 3), agg.At(1, 2, 3)); diff != "" {
		t.Errorf("entry (1,2,3) mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_RejectsOutOfOrder(t *testing.T) {
	grid := testGrid()
	b, err := NewBuilder(grid, testPatients)
	require.NoError(t, err)

	require.NoError(t, b.Append(entry(grid, 0, 0, 0)))
	err = b.Append(entry(grid, 0, 0, 2))
	assert.ErrorIs(t, err, core.ErrOutOfOrder)

	err = b.Append(entry(grid, 0, 1, 1))
	assert.ErrorIs(t, err, core.ErrOutOfOrder)

	mislabeled := entry(grid, 0, 0, 1)
	mislabeled.Patient = "p9"
	assert.ErrorIs(t, b.Append(mislabeled), core.ErrOutOfOrder)

	c, d, f := b.Expected()
	assert.Equal(t, []int{0, 0, 1}, []int{c, d, f})
}

func TestBuilder_IncompleteIsAGap(t *testing.T) {
	grid := testGrid()
	b, err := NewBuilder(grid, testPatients)
	require.NoError(t, err)
	require.NoError(t, b.Append(entry(grid, 0, 0, 0)))

	_, err = b.Complete()
	assert.ErrorIs(t, err, core.ErrAggregateGap)
	assert.True(t, core.IsIntegrityError(err))
}

func TestBuilder_SentinelsCount(t *testing.T) {
	grid := testGrid()
	grid.Configurations = grid.Configurations[:1]
	grid.Dimensionalities = []int{2}
	b, err := NewBuilder(grid, testPatients)
	require.NoError(t, err)

	for f := range testPatients {
		e := entry(grid, 0, 0, f)
		if f == 2 {
			e.Status = evaluation.StatusSkipped
			e.Result = nil
			e.Reason = "rank deficient"
		}
		require.NoError(t, b.Append(e))
	}

	agg, err := b.Complete()
	require.NoError(t, err)
	assert.Equal(t, 4, agg.Count())
	assert.Equal(t, 1, agg.CountStatus(evaluation.StatusSkipped))

	assert.ErrorIs(t, b.Append(entry(grid, 0, 0, 0)), core.ErrOutOfOrder)
}

func TestBuilder_RejectsHollowEntries(t *testing.T) {
	grid := testGrid()
	b, err := NewBuilder(grid, testPatients)
	require.NoError(t, err)

	e := entry(grid, 0, 0, 0)
	e.Result = nil
	assert.ErrorIs(t, b.Append(e), core.ErrAggregateGap)

	e = entry(grid, 0, 0, 0)
	e.Status = evaluation.StatusSkipped
	assert.ErrorIs(t, b.Append(e), core.ErrAggregateGap)

	_, err = NewBuilder(grid, nil)
	assert.True(t, core.IsValidationError(err))
}
