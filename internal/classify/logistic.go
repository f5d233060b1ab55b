package classify

import (
	"context"
	"fmt"
	"math"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/ports"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	knobC       = "C"
	knobMaxIter = "max_iter"

	defaultC       = 1.0
	defaultMaxIter = 500

	gradientTolerance = 1e-6
)

// LogisticRegression minimizes ½‖w‖² + C·Σ logloss with L-BFGS. The intercept
// is not penalized.
//
// Knobs: C (default 1), max_iter (default 500). Hitting max_iter is reported
// as core.ErrNotConverged.
type LogisticRegression struct{}

func (LogisticRegression) Family() string { return FamilyLogisticRegression }

func (LogisticRegression) params(cfg evaluation.Configuration) (float64, int, error) {
	if err := checkKnobs(cfg, knobC, knobMaxIter); err != nil {
		return 0, 0, err
	}
	c := cfg.Param(knobC, defaultC)
	if c <= 0 || math.IsInf(c, 0) || math.IsNaN(c) {
		return 0, 0, core.NewValidationError("params", fmt.Sprintf("C must be positive and finite, got %g", c))
	}
	iters, err := intKnob(cfg, knobMaxIter, defaultMaxIter)
	if err != nil {
		return 0, 0, err
	}
	if iters == 0 {
		return 0, 0, core.NewValidationError("params", "max_iter must be at least 1")
	}
	return c, iters, nil
}

// Validate checks the knobs without fitting.
func (l LogisticRegression) Validate(cfg evaluation.Configuration) error {
	_, _, err := l.params(cfg)
	return err
}

// Fit estimates the weights. Both classes must be present in y.
func (l LogisticRegression) Fit(ctx context.Context, x *mat.Dense, y *mat.VecDense, cfg evaluation.Configuration) (ports.Predictor, error) {
	c, maxIter, err := l.params(cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, d := x.Dims()
	if n == 0 || y.Len() != n {
		return nil, fmt.Errorf("%w: %d rows, %d labels", core.ErrClassifierFailed, n, y.Len())
	}
	labels := y.RawVector().Data
	if pos := floats.Sum(labels); pos == 0 || int(pos) == n {
		return nil, fmt.Errorf("%w: %w", core.ErrClassifierFailed, errSingleClass)
	}

	// Parameter layout: w[0:d] weights, w[d] intercept.
	margin := make([]float64, n)
	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			var loss float64
			for i := 0; i < n; i++ {
				z := linear(x.RawRowView(i), w)
				loss += logLoss(z, labels[i])
			}
			return 0.5*floats.Dot(w[:d], w[:d]) + c*loss
		},
		Grad: func(grad, w []float64) {
			for i := 0; i < n; i++ {
				margin[i] = sigmoid(linear(x.RawRowView(i), w)) - labels[i]
			}
			copy(grad[:d], w[:d])
			grad[d] = 0
			for i := 0; i < n; i++ {
				row := x.RawRowView(i)
				floats.AddScaled(grad[:d], c*margin[i], row)
				grad[d] += c * margin[i]
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: gradientTolerance,
	}
	result, err := optimize.Minimize(problem, make([]float64, d+1), settings, &optimize.LBFGS{})
	if result != nil && result.Status == optimize.IterationLimit {
		return nil, fmt.Errorf("%w: stopped after %d iterations", core.ErrNotConverged, maxIter)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrClassifierFailed, err)
	}
	if result == nil || !finite(result.X) {
		return nil, fmt.Errorf("%w: optimizer returned no usable solution", core.ErrClassifierFailed)
	}

	w := append([]float64(nil), result.X...)
	return &logisticPredictor{weights: w}, nil
}

func linear(row, w []float64) float64 {
	d := len(row)
	return floats.Dot(row, w[:d]) + w[d]
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logLoss is the binary cross-entropy of margin z against label y, written to
// stay finite for large |z|.
func logLoss(z, y float64) float64 {
	if y > 0.5 {
		z = -z
	}
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func finite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

type logisticPredictor struct {
	weights []float64
}

func (l *logisticPredictor) PredictProba(x mat.Matrix) ([]float64, error) {
	n, d := x.Dims()
	if d != len(l.weights)-1 {
		return nil, fmt.Errorf("%w: fitted on %d features, got %d", core.ErrClassifierFailed, len(l.weights)-1, d)
	}
	out := make([]float64, n)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		out[i] = sigmoid(linear(row, l.weights))
	}
	return out, nil
}
