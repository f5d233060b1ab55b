package projection

import (
	"fmt"
	"math"

	"golopo/domain/core"
	"golopo/domain/evaluation"

	"gonum.org/v1/gonum/floats"
)

// kernel is a symmetric positive semi-definite similarity. Gamma has already
// been resolved against the feature count of the training matrix.
type kernel struct {
	name   string
	gamma  float64
	degree int
	coef0  float64
}

// resolve fills in defaults that depend on the training data.
func resolve(spec evaluation.KernelSpec, features int) (kernel, error) {
	k := kernel{
		name:   spec.Name,
		gamma:  spec.Gamma,
		degree: spec.Degree,
		coef0:  spec.Coef0,
	}
	if k.name == "" {
		k.name = evaluation.KernelRBF
	}
	if k.gamma == 0 {
		k.gamma = 1.0 / float64(features)
	}
	if k.degree == 0 {
		k.degree = 3
	}
	switch k.name {
	case evaluation.KernelRBF, evaluation.KernelPolynomial, evaluation.KernelSigmoid,
		evaluation.KernelLinear, evaluation.KernelCosine:
		return k, nil
	}
	return kernel{}, fmt.Errorf("%w: %q", core.ErrUnsupportedKernel, spec.Name)
}

func (k kernel) eval(a, b []float64) float64 {
	switch k.name {
	case evaluation.KernelRBF:
		var d2 float64
		for i := range a {
			diff := a[i] - b[i]
			d2 += diff * diff
		}
		return math.Exp(-k.gamma * d2)
	case evaluation.KernelPolynomial:
		return math.Pow(k.gamma*floats.Dot(a, b)+k.coef0, float64(k.degree))
	case evaluation.KernelSigmoid:
		return math.Tanh(k.gamma*floats.Dot(a, b) + k.coef0)
	case evaluation.KernelCosine:
		na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
		if na == 0 || nb == 0 {
			return 0
		}
		return floats.Dot(a, b) / (na * nb)
	default:
		return floats.Dot(a, b)
	}
}

func (k kernel) String() string {
	return fmt.Sprintf("%s(gamma=%g degree=%d coef0=%g)", k.name, k.gamma, k.degree, k.coef0)
}
