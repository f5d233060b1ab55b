package classify

import (
	"context"
	"fmt"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/ports"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NearestCentroid scores a row by its relative distance to the two class
// means. It has no knobs.
type NearestCentroid struct{}

func (NearestCentroid) Family() string { return FamilyNearestCentroid }

// Validate rejects any knob.
func (NearestCentroid) Validate(cfg evaluation.Configuration) error {
	return checkKnobs(cfg)
}

// Fit computes the class centroids.
func (n NearestCentroid) Fit(ctx context.Context, x *mat.Dense, y *mat.VecDense, cfg evaluation.Configuration) (ports.Predictor, error) {
	if err := n.Validate(cfg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, d := x.Dims()
	if rows == 0 || y.Len() != rows {
		return nil, fmt.Errorf("%w: %d rows, %d labels", core.ErrClassifierFailed, rows, y.Len())
	}

	neg := make([]float64, d)
	pos := make([]float64, d)
	var nNeg, nPos float64
	for i := 0; i < rows; i++ {
		if y.AtVec(i) > 0.5 {
			floats.Add(pos, x.RawRowView(i))
			nPos++
		} else {
			floats.Add(neg, x.RawRowView(i))
			nNeg++
		}
	}
	if nNeg == 0 || nPos == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrClassifierFailed, errSingleClass)
	}
	floats.Scale(1/nNeg, neg)
	floats.Scale(1/nPos, pos)
	return &centroidPredictor{negative: neg, positive: pos}, nil
}

type centroidPredictor struct {
	negative []float64
	positive []float64
}

// PredictProba returns dNeg/(dNeg+dPos), which exceeds 0.5 exactly when the
// row is closer to the positive centroid.
func (c *centroidPredictor) PredictProba(x mat.Matrix) ([]float64, error) {
	n, d := x.Dims()
	if d != len(c.negative) {
		return nil, fmt.Errorf("%w: fitted on %d features, got %d", core.ErrClassifierFailed, len(c.negative), d)
	}
	out := make([]float64, n)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		dn := floats.Distance(row, c.negative, 2)
		dp := floats.Distance(row, c.positive, 2)
		if dn+dp == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = dn / (dn + dp)
	}
	return out, nil
}
