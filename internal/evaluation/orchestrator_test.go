package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"golopo/domain/cohort"
	"golopo/domain/core"
	domain "golopo/domain/evaluation"
	"golopo/internal/classify"
	"golopo/internal/metrics"
	"golopo/internal/projection"
	"golopo/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// buildStore gives every patient rows*cols Gaussian features with labels
// alternating between 0 and 255.
func buildStore(t *testing.T, patients, rows, cols int) *cohort.Store {
	t.Helper()
	rng := rand.New(rand.NewPCG(11, 13))
	records := make([]cohort.Patient, patients)
	for p := range records {
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = rng.NormFloat64()
		}
		labels := make([]float64, rows)
		for i := range labels {
			if (i+p)%2 == 1 {
				labels[i] = 255
			}
		}
		rec, err := cohort.NewPatient(core.PatientID(fmt.Sprintf("p%d", p+1)), mat.NewDense(rows, cols, data), labels)
		require.NoError(t, err)
		records[p] = rec
	}
	store, err := cohort.NewStore(records...)
	require.NoError(t, err)
	return store
}

func forestGrid(dims ...int) domain.Grid {
	return domain.Grid{
		Configurations: []domain.Configuration{
			{Name: "rf-10", Family: classify.FamilyRandomForest, Estimators: 10, Jobs: 2,
				Params: map[string]float64{"seed": 1}},
		},
		Dimensionalities: dims,
		Labels:           domain.LabelPair{Negative: 0, Positive: 255},
		Kernel:           domain.KernelSpec{Name: domain.KernelRBF},
	}
}

// spyProjector records every training matrix it is asked to fit.
type spyProjector struct {
	inner  ports.Projector
	trains []*mat.Dense
}

func (s *spyProjector) FitTransform(train mat.Matrix, components int) (ports.ProjectionModel, *mat.Dense, error) {
	s.trains = append(s.trains, mat.DenseCopyOf(train))
	return s.inner.FitTransform(train, components)
}

func newSpy(t *testing.T) *spyProjector {
	t.Helper()
	kp, err := projection.New(domain.KernelSpec{Name: domain.KernelRBF})
	require.NoError(t, err)
	return &spyProjector{inner: kp}
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	zc, logs := observer.New(zapcore.DebugLevel)
	return zap.New(zc), logs
}

func containsRow(m *mat.Dense, row []float64) bool {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		if floats.Equal(row, m.RawRowView(i)) {
			return true
		}
	}
	return false
}

func TestRunner_ThreePatientsTwoDimensionalities(t *testing.T) {
	store := buildStore(t, 3, 10, 5)
	spy := newSpy(t)
	logger, logs := observed()
	recorder := metrics.New(false)

	runner, err := NewRunner(Options{
		Store:       store,
		Grid:        forestGrid(2, 4),
		Projector:   spy,
		Classifiers: classify.DefaultRegistry(),
		Logger:      logger,
		Recorder:    recorder,
	})
	require.NoError(t, err)

	agg, err := runner.Run(context.Background())
	require.NoError(t, err)

	c, d, p := agg.Shape()
	assert.Equal(t, []int{1, 2, 3}, []int{c, d, p})
	assert.Equal(t, 6, agg.Count())
	assert.Equal(t, 6, agg.CountStatus(domain.StatusCompleted))
	require.NoError(t, agg.Verify())

	for di, dim := range []int{2, 4} {
		for f := 0; f < 3; f++ {
			e := agg.At(0, di, f)
			assert.Equal(t, dim, e.Dimensionality)
			assert.Equal(t, dim, e.EffectiveDimensionality)
			assert.Equal(t, store.At(f).ID().String(), e.Patient)
			require.NotNil(t, e.Result)
			assert.Equal(t, 20, e.Result.TrainRows)
			assert.Equal(t, 10, e.Result.TestRows)
			assert.Len(t, e.Result.Scores, 10)
		}
	}

	// One projection fit per entry, in fold order, never seeing held-out rows.
	require.Len(t, spy.trains, 6)
	for call, train := range spy.trains {
		heldOut := store.At(call % 3)
		rows, _ := train.Dims()
		assert.Equal(t, 20, rows)
		for i := 0; i < heldOut.Rows(); i++ {
			assert.False(t, containsRow(train, heldOut.Row(i)), "fit %d saw row %d of %s", call, i, heldOut.ID())
		}
	}

	events := logs.FilterMessage("fold evaluated").All()
	require.Len(t, events, 6)
	first := events[0].ContextMap()
	assert.Equal(t, "rf-10", first["configuration"])
	assert.Equal(t, int64(2), first["dimensionality"])
	assert.Equal(t, int64(0), first["fold"])
	assert.Equal(t, "p1", first["patient"])
	last := events[5].ContextMap()
	assert.Equal(t, int64(4), last["dimensionality"])
	assert.Equal(t, "p3", last["patient"])
}

func TestRunner_RankDeficientAborts(t *testing.T) {
	// One row per patient leaves a two-row training matrix in every fold.
	store := buildStore(t, 3, 1, 5)
	logger, logs := observed()

	runner, err := NewRunner(Options{
		Store:       store,
		Grid:        forestGrid(2),
		Projector:   newSpy(t),
		Classifiers: classify.DefaultRegistry(),
		Logger:      logger,
	})
	require.NoError(t, err)

	agg, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, agg)
	assert.ErrorIs(t, err, core.ErrRankDeficient)

	var foldErr *domain.FoldError
	require.True(t, errors.As(err, &foldErr))
	assert.Equal(t, StageProject, foldErr.Stage)
	assert.Equal(t, 2, foldErr.Dimensionality)
	assert.Equal(t, 0, foldErr.Fold)
	assert.Equal(t, "p1", foldErr.Patient)

	assert.Equal(t, 1, logs.FilterMessage("grid aborted").Len())
}

func TestRunner_RankDeficientSkip(t *testing.T) {
	store := buildStore(t, 3, 1, 5)
	grid := forestGrid(1, 2)
	grid.OnProjectionErr = domain.PolicySkip
	logger, logs := observed()

	runner, err := NewRunner(Options{
		Store:       store,
		Grid:        grid,
		Projector:   newSpy(t),
		Classifiers: classify.DefaultRegistry(),
		Logger:      logger,
	})
	require.NoError(t, err)

	agg, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, agg.Count())
	assert.Equal(t, 3, agg.CountStatus(domain.StatusCompleted))
	assert.Equal(t, 3, agg.CountStatus(domain.StatusSkipped))

	skipped := agg.At(0, 1, 2)
	assert.Equal(t, domain.StatusSkipped, skipped.Status)
	assert.Nil(t, skipped.Result)
	assert.Contains(t, skipped.Reason, "rank")

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 3)
	assert.Equal(t, int64(2), warnings[0].ContextMap()["dimensionality"])
}

func TestRunner_RankDeficientClamp(t *testing.T) {
	store := buildStore(t, 3, 1, 5)
	grid := forestGrid(2)
	grid.OnProjectionErr = domain.PolicyClamp
	logger, logs := observed()

	runner, err := NewRunner(Options{
		Store:       store,
		Grid:        grid,
		Projector:   newSpy(t),
		Classifiers: classify.DefaultRegistry(),
		Logger:      logger,
	})
	require.NoError(t, err)

	agg, err := runner.Run(context.Background())
	require.NoError(t, err)
	for f := 0; f < 3; f++ {
		e := agg.At(0, 0, f)
		assert.Equal(t, 2, e.Dimensionality)
		assert.Equal(t, 1, e.EffectiveDimensionality)
		assert.True(t, e.Completed())
	}
	assert.Equal(t, 3, logs.FilterMessage("dimensionality clamped to training rank").Len())
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Family() string { return "mock" }

func (m *mockClassifier) Validate(cfg domain.Configuration) error {
	return m.Called(cfg).Error(0)
}

func (m *mockClassifier) Fit(ctx context.Context, x *mat.Dense, y *mat.VecDense, cfg domain.Configuration) (ports.Predictor, error) {
	args := m.Called(ctx, x, y, cfg)
	p, _ := args.Get(0).(ports.Predictor)
	return p, args.Error(1)
}

func TestRunner_ClassifierFailureAbortsWithContext(t *testing.T) {
	store := buildStore(t, 3, 10, 5)
	clf := &mockClassifier{}
	clf.On("Validate", mock.Anything).Return(nil)
	clf.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, core.ErrNotConverged)

	grid := forestGrid(2, 4)
	grid.Configurations = []domain.Configuration{{Name: "flaky", Family: "mock"}}
	recorder := metrics.New(false)

	runner, err := NewRunner(Options{
		Store:       store,
		Grid:        grid,
		Projector:   newSpy(t),
		Classifiers: classify.NewRegistry(clf),
		Recorder:    recorder,
	})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotConverged)

	var foldErr *domain.FoldError
	require.True(t, errors.As(err, &foldErr))
	assert.Equal(t, "flaky", foldErr.Configuration)
	assert.Equal(t, 2, foldErr.Dimensionality)
	assert.Equal(t, 0, foldErr.Fold)
	assert.Equal(t, "p1", foldErr.Patient)
	assert.Equal(t, StageFit, foldErr.Stage)

	clf.AssertNumberOfCalls(t, "Fit", 1)
}

func TestRunner_PlainClassifierErrorsJoinTaxonomy(t *testing.T) {
	store := buildStore(t, 2, 6, 3)
	clf := &mockClassifier{}
	clf.On("Validate", mock.Anything).Return(nil)
	clf.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("segfault in native code"))

	grid := forestGrid(2)
	grid.Configurations = []domain.Configuration{{Name: "native", Family: "mock"}}
	runner, err := NewRunner(Options{Store: store, Grid: grid, Projector: newSpy(t), Classifiers: classify.NewRegistry(clf)})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.True(t, core.IsClassifierError(err))
}

func TestNewRunner_ValidatesBeforeAnyFold(t *testing.T) {
	spy := newSpy(t)
	registry := classify.DefaultRegistry()

	_, err := NewRunner(Options{Store: buildStore(t, 1, 4, 3), Grid: forestGrid(2), Projector: spy, Classifiers: registry})
	assert.ErrorIs(t, err, core.ErrInsufficientPatients)

	grid := forestGrid(2)
	grid.Configurations[0].Family = "svm"
	_, err = NewRunner(Options{Store: buildStore(t, 3, 4, 3), Grid: grid, Projector: spy, Classifiers: registry})
	assert.ErrorIs(t, err, core.ErrUnknownFamily)

	grid = forestGrid(2)
	grid.Configurations[0].Params["C"] = 1
	_, err = NewRunner(Options{Store: buildStore(t, 3, 4, 3), Grid: grid, Projector: spy, Classifiers: registry})
	assert.True(t, core.IsValidationError(err))

	assert.Empty(t, spy.trains)
}

func TestRunner_UnknownLabelIsAFoldError(t *testing.T) {
	good := buildStore(t, 2, 4, 3)
	odd, err := cohort.NewPatient("p3", mat.NewDense(4, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}), []float64{0, 128, 255, 0})
	require.NoError(t, err)
	store, err := cohort.NewStore(good.At(0), good.At(1), odd)
	require.NoError(t, err)

	runner, err := NewRunner(Options{Store: store, Grid: forestGrid(2), Projector: newSpy(t), Classifiers: classify.DefaultRegistry()})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrUnknownLabel)
	var foldErr *domain.FoldError
	require.True(t, errors.As(err, &foldErr))
	assert.Equal(t, StageBinarize, foldErr.Stage)
}

func TestRunner_IsRepeatable(t *testing.T) {
	store := buildStore(t, 3, 8, 4)
	runner, err := NewRunner(Options{Store: store, Grid: forestGrid(2), Projector: newSpy(t), Classifiers: classify.DefaultRegistry()})
	require.NoError(t, err)

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	second, err := runner.Run(context.Background())
	require.NoError(t, err)

	for f := 0; f < 3; f++ {
		assert.Equal(t, first.At(0, 0, f).Result.Scores, second.At(0, 0, f).Result.Scores)
	}
}

func TestRunner_StopsOnCancelledContext(t *testing.T) {
	store := buildStore(t, 3, 6, 3)
	spy := newSpy(t)
	runner, err := NewRunner(Options{Store: store, Grid: forestGrid(2), Projector: spy, Classifiers: classify.DefaultRegistry()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, spy.trains)
}
