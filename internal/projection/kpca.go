// Package projection implements kernel PCA with a strict fit/transform split:
// a model only ever sees its training matrix while fitting.
package projection

import (
	"fmt"
	"math"
	"sort"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/ports"

	"gonum.org/v1/gonum/mat"
)

// relativeTolerance separates numerically zero eigenvalues of the centered
// kernel from informative ones.
const relativeTolerance = 1e-10

// KernelPCA fits kernel principal component models.
type KernelPCA struct {
	spec evaluation.KernelSpec
}

// New validates the kernel spec up front so a bad grid fails before any fold.
func New(spec evaluation.KernelSpec) (*KernelPCA, error) {
	if _, err := resolve(spec, 1); err != nil {
		return nil, err
	}
	return &KernelPCA{spec: spec}, nil
}

// FitTransform satisfies ports.Projector.
func (k *KernelPCA) FitTransform(train mat.Matrix, components int) (ports.ProjectionModel, *mat.Dense, error) {
	m, proj, err := k.Fit(train, components)
	if err != nil {
		return nil, nil, err
	}
	return m, proj, nil
}

// Fit centers the kernel of train, keeps the leading components eigenvectors
// and returns the model plus the projection of train.
func (k *KernelPCA) Fit(train mat.Matrix, components int) (*Model, *mat.Dense, error) {
	n, d := train.Dims()
	if components <= 0 {
		return nil, nil, fmt.Errorf("%w: components must be positive, got %d", core.ErrDimensionality, components)
	}
	if n == 0 || d == 0 {
		return nil, nil, fmt.Errorf("%w: empty training matrix", core.ErrDimensionality)
	}

	kern, err := resolve(k.spec, d)
	if err != nil {
		return nil, nil, err
	}

	x := mat.DenseCopyOf(train)
	gram := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		ri := x.RawRowView(i)
		for j := i; j < n; j++ {
			gram.SetSym(i, j, kern.eval(ri, x.RawRowView(j)))
		}
	}

	rowMeans := make([]float64, n)
	var allMean float64
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += gram.At(i, j)
		}
		rowMeans[i] = s / float64(n)
		allMean += rowMeans[i]
	}
	allMean /= float64(n)

	centered := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			centered.SetSym(i, j, gram.At(i, j)-rowMeans[i]-rowMeans[j]+allMean)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(centered, true); !ok {
		return nil, nil, fmt.Errorf("%w: eigendecomposition did not converge", core.ErrProjection)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Values come back ascending; walk them from the top.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	rank := 0
	top := values[order[0]]
	if top > 0 {
		for _, idx := range order {
			if values[idx] > top*relativeTolerance {
				rank++
			}
		}
	}
	if components > rank {
		return nil, nil, &core.RankError{Requested: components, Available: rank}
	}

	lambdas := make([]float64, components)
	scaled := mat.NewDense(n, components, nil)
	proj := mat.NewDense(n, components, nil)
	for c := 0; c < components; c++ {
		idx := order[c]
		lambdas[c] = values[idx]
		col := mat.Col(nil, idx, &vectors)
		orientSign(col)
		root := math.Sqrt(lambdas[c])
		for i := 0; i < n; i++ {
			scaled.Set(i, c, col[i]/root)
			proj.Set(i, c, col[i]*root)
		}
	}

	return &Model{
		kernel:   kern,
		train:    x,
		rowMeans: rowMeans,
		allMean:  allMean,
		lambdas:  lambdas,
		scaled:   scaled,
		rank:     rank,
	}, proj, nil
}

// orientSign flips v so its largest-magnitude entry is positive. Eigenvector
// signs are otherwise arbitrary and would make reruns disagree.
func orientSign(v []float64) {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if v[best] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}

// Model is a fitted kernel PCA. Its fields are never written after Fit.
type Model struct {
	kernel   kernel
	train    *mat.Dense
	rowMeans []float64
	allMean  float64
	lambdas  []float64
	scaled   *mat.Dense
	rank     int
}

// Components returns the output dimensionality.
func (m *Model) Components() int { return len(m.lambdas) }

// Rank returns the numerical rank of the centered training kernel.
func (m *Model) Rank() int { return m.rank }

// Kernel describes the resolved kernel.
func (m *Model) Kernel() string { return m.kernel.String() }

// Transform projects rows of x using only the statistics captured at fit time.
func (m *Model) Transform(x mat.Matrix) (*mat.Dense, error) {
	rows, cols := x.Dims()
	n, d := m.train.Dims()
	if cols != d {
		return nil, fmt.Errorf("%w: model fitted on %d features, got %d", core.ErrDimensionality, d, cols)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty matrix", core.ErrDimensionality)
	}

	xd := mat.DenseCopyOf(x)
	cross := mat.NewDense(rows, n, nil)
	for i := 0; i < rows; i++ {
		ri := xd.RawRowView(i)
		var s float64
		for j := 0; j < n; j++ {
			v := m.kernel.eval(ri, m.train.RawRowView(j))
			cross.Set(i, j, v)
			s += v
		}
		mean := s / float64(n)
		for j := 0; j < n; j++ {
			cross.Set(i, j, cross.At(i, j)-mean-m.rowMeans[j]+m.allMean)
		}
	}

	var out mat.Dense
	out.Mul(cross, m.scaled)
	return &out, nil
}

// Parameters is a copy of everything a model learned, for audits and tests.
type Parameters struct {
	Eigenvalues []float64
	RowMeans    []float64
	AllMean     float64
	Scaled      *mat.Dense
}

// Parameters returns copies of the fitted statistics.
func (m *Model) Parameters() Parameters {
	return Parameters{
		Eigenvalues: append([]float64(nil), m.lambdas...),
		RowMeans:    append([]float64(nil), m.rowMeans...),
		AllMean:     m.allMean,
		Scaled:      mat.DenseCopyOf(m.scaled),
	}
}
