package ports

import (
	"context"

	"golopo/domain/evaluation"

	"gonum.org/v1/gonum/mat"
)

// Classifier is the capability every classifier family satisfies: fit on a
// training projection with binary labels, then score unseen rows. Internal
// search and parallelism belong to the implementation; cfg.Jobs is a hint.
type Classifier interface {
	// Family returns the family identifier used in configurations.
	Family() string
	// Validate rejects configurations the family cannot honour.
	Validate(cfg evaluation.Configuration) error
	// Fit trains on x with labels y in {0,1}.
	Fit(ctx context.Context, x *mat.Dense, y *mat.VecDense, cfg evaluation.Configuration) (Predictor, error)
}

// Predictor is a fitted classifier.
type Predictor interface {
	// PredictProba returns the positive-class probability of every row of x.
	PredictProba(x mat.Matrix) ([]float64, error)
}
