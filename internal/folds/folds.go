// Package folds builds Leave-One-Patient-Out folds over a cohort store.
package folds

import (
	"fmt"
	"iter"

	"golopo/domain/cohort"
	"golopo/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Fold holds out one patient and pools every other patient for training.
type Fold struct {
	Index int
	Test  cohort.Patient
	Train []cohort.Patient
}

// TrainingSet stacks the training patients in enumeration order.
func (f Fold) TrainingSet() (*mat.Dense, []float64) {
	return stack(f.Train)
}

// TestSet returns a copy of the held-out patient's matrix and labels.
func (f Fold) TestSet() (*mat.Dense, []float64) {
	return mat.DenseCopyOf(f.Test.Features()), f.Test.Labels()
}

// TrainingIDs lists the training patients in enumeration order.
func (f Fold) TrainingIDs() []core.PatientID {
	ids := make([]core.PatientID, len(f.Train))
	for i, p := range f.Train {
		ids[i] = p.ID()
	}
	return ids
}

// CheckLeakage fails when the held-out patient appears in its own training pool.
func (f Fold) CheckLeakage() error {
	for _, p := range f.Train {
		if p.ID() == f.Test.ID() {
			return core.NewLeakageError(f.Test.ID().String(), f.Index)
		}
	}
	return nil
}

// Generator yields the folds of a store. It is safe to iterate more than once.
type Generator struct {
	store *cohort.Store
}

// New validates that the store can be split. Fewer than two patients leaves an
// empty training pool, which is an input error.
func New(store *cohort.Store) (*Generator, error) {
	if store == nil {
		return nil, core.NewValidationError("store", "cannot be nil")
	}
	if store.Len() < 2 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInsufficientPatients, store.Len())
	}
	return &Generator{store: store}, nil
}

// Len returns the number of folds, one per patient.
func (g *Generator) Len() int { return g.store.Len() }

// At builds fold i directly.
func (g *Generator) At(i int) Fold {
	n := g.store.Len()
	train := make([]cohort.Patient, 0, n-1)
	for j := 0; j < n; j++ {
		if j != i {
			train = append(train, g.store.At(j))
		}
	}
	return Fold{Index: i, Test: g.store.At(i), Train: train}
}

// All lazily yields fold 0..P-1 in patient enumeration order.
func (g *Generator) All() iter.Seq[Fold] {
	return func(yield func(Fold) bool) {
		for i := 0; i < g.store.Len(); i++ {
			if !yield(g.At(i)) {
				return
			}
		}
	}
}

func stack(patients []cohort.Patient) (*mat.Dense, []float64) {
	rows, cols := 0, 0
	for _, p := range patients {
		rows += p.Rows()
		cols = p.Cols()
	}
	if rows == 0 {
		return &mat.Dense{}, nil
	}

	out := mat.NewDense(rows, cols, nil)
	labels := make([]float64, 0, rows)
	r := 0
	for _, p := range patients {
		for i := 0; i < p.Rows(); i++ {
			out.SetRow(r, p.Row(i))
			r++
		}
		labels = append(labels, p.Labels()...)
	}
	return out, labels
}
