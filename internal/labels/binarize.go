// Package labels maps raw label vectors onto the two-class encoding used by
// every classifier family.
package labels

import (
	"fmt"

	"golopo/domain/core"
	"golopo/domain/evaluation"

	"gonum.org/v1/gonum/mat"
)

// Encoded class values.
const (
	Negative = 0.0
	Positive = 1.0
)

// Binarizer maps raw values onto {0,1} using a known raw pair.
//
// A value equal to the pair's negative maps to 0 and the pair's positive maps
// to 1. The codes 0 and 1 themselves map to themselves, so applying the same
// binarizer twice is a no-op. Any other value is rejected.
type Binarizer struct {
	pair evaluation.LabelPair
}

// NewBinarizer rejects pairs that would make re-application ambiguous: a
// negative raw value of 1 or a positive raw value of 0 collides with the codes.
func NewBinarizer(pair evaluation.LabelPair) (*Binarizer, error) {
	if pair.Negative == pair.Positive {
		return nil, core.NewValidationError("labels", "negative and positive values must differ")
	}
	if pair.Negative == Positive || pair.Positive == Negative {
		return nil, core.NewValidationError("labels",
			fmt.Sprintf("pair (%g, %g) collides with the binary codes", pair.Negative, pair.Positive))
	}
	return &Binarizer{pair: pair}, nil
}

// Pair returns the raw pair.
func (b *Binarizer) Pair() evaluation.LabelPair { return b.pair }

// Binarize encodes raw into a new vector. It never modifies raw.
func (b *Binarizer) Binarize(raw []float64) (*mat.VecDense, error) {
	if len(raw) == 0 {
		return nil, core.NewValidationError("labels", "cannot binarize an empty vector")
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		code, err := b.encode(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = code
	}
	return mat.NewVecDense(len(out), out), nil
}

// BinarizeVec applies Binarize to an already encoded or raw vector.
func (b *Binarizer) BinarizeVec(v mat.Vector) (*mat.VecDense, error) {
	raw := make([]float64, v.Len())
	for i := range raw {
		raw[i] = v.AtVec(i)
	}
	return b.Binarize(raw)
}

func (b *Binarizer) encode(v float64) (float64, error) {
	switch v {
	case b.pair.Positive, Positive:
		return Positive, nil
	case b.pair.Negative, Negative:
		return Negative, nil
	}
	return 0, fmt.Errorf("%w: %g not in (%g, %g)", core.ErrUnknownLabel, v, b.pair.Negative, b.pair.Positive)
}

// Counts returns the number of negative and positive entries of an encoded vector.
func Counts(y mat.Vector) (neg, pos int) {
	for i := 0; i < y.Len(); i++ {
		if y.AtVec(i) == Positive {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}
