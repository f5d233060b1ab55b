package cohort

import (
	"golopo/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Patient is one immutable patient record: a feature matrix with one row per
// voxel and the raw label of each row.
type Patient struct {
	id       core.PatientID
	features *mat.Dense
	labels   []float64
}

// NewPatient copies features and labels into a new record. The row count of
// the matrix must match the label count.
func NewPatient(id core.PatientID, features mat.Matrix, labels []float64) (Patient, error) {
	if id.String() == "" {
		return Patient{}, core.NewValidationError("patient_id", "cannot be empty")
	}
	if features == nil {
		return Patient{}, core.NewValidationError("features", "patient "+id.String()+" has no feature matrix")
	}
	rows, cols := features.Dims()
	if rows == 0 || cols == 0 {
		return Patient{}, core.NewValidationError("features", "patient "+id.String()+" has an empty feature matrix")
	}
	if rows != len(labels) {
		return Patient{}, &LengthError{Patient: id, Rows: rows, Labels: len(labels)}
	}

	lbl := make([]float64, len(labels))
	copy(lbl, labels)

	return Patient{
		id:       id,
		features: mat.DenseCopyOf(features),
		labels:   lbl,
	}, nil
}

// ID returns the patient identifier.
func (p Patient) ID() core.PatientID { return p.id }

// Rows returns the number of voxels.
func (p Patient) Rows() int {
	r, _ := p.features.Dims()
	return r
}

// Cols returns the number of features per voxel.
func (p Patient) Cols() int {
	_, c := p.features.Dims()
	return c
}

// Features returns a read-only view of the feature matrix.
func (p Patient) Features() mat.Matrix { return p.features }

// Row returns row i of the feature matrix. The slice aliases store memory and
// must not be written.
func (p Patient) Row(i int) []float64 { return p.features.RawRowView(i) }

// Labels returns a copy of the raw label vector.
func (p Patient) Labels() []float64 {
	out := make([]float64, len(p.labels))
	copy(out, p.labels)
	return out
}

// Label returns the raw label of row i.
func (p Patient) Label(i int) float64 { return p.labels[i] }

// Shape summarizes the record for fingerprinting.
func (p Patient) Shape() core.PatientShape {
	return core.PatientShape{ID: p.id, Rows: p.Rows(), Cols: p.Cols()}
}

// LengthError reports a feature matrix whose row count disagrees with its
// label vector.
type LengthError struct {
	Patient core.PatientID
	Rows    int
	Labels  int
}

func (e *LengthError) Error() string {
	return "patient " + e.Patient.String() + ": " + core.ErrLengthMismatch.Error() +
		" (" + itoa(e.Rows) + " rows, " + itoa(e.Labels) + " labels)"
}

func (e *LengthError) Unwrap() error { return core.ErrLengthMismatch }
