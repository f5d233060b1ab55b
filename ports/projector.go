package ports

import (
	"gonum.org/v1/gonum/mat"
)

// Projector fits a dimensionality reduction on a training matrix only.
type Projector interface {
	// FitTransform fits on train and returns the fitted model together with
	// the projection of train itself.
	FitTransform(train mat.Matrix, components int) (ProjectionModel, *mat.Dense, error)
}

// ProjectionModel is a fitted, read-only transform.
type ProjectionModel interface {
	Components() int
	Transform(x mat.Matrix) (*mat.Dense, error)
}
