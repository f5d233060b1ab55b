package classify

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

const (
	knobMaxDepth       = "max_depth"
	knobMinSamplesLeaf = "min_samples_leaf"
	knobMaxFeatures    = "max_features"
	knobSeed           = "seed"

	defaultEstimators = 100
)

// RandomForest is a bootstrap-aggregated ensemble of gini CART trees.
//
// Knobs: max_depth (0 = unlimited), min_samples_leaf (default 1),
// max_features (0 = floor(sqrt(features))), seed (default 0).
// Estimators defaults to 100; Jobs bounds concurrent tree construction.
type RandomForest struct{}

func (RandomForest) Family() string { return FamilyRandomForest }

type forestParams struct {
	trees       int
	jobs        int
	maxDepth    int
	minLeaf     int
	maxFeatures int
	seed        uint64
}

func (RandomForest) params(cfg evaluation.Configuration) (forestParams, error) {
	if err := checkKnobs(cfg, knobMaxDepth, knobMinSamplesLeaf, knobMaxFeatures, knobSeed); err != nil {
		return forestParams{}, err
	}
	p := forestParams{trees: cfg.Estimators, jobs: cfg.Jobs}
	if p.trees == 0 {
		p.trees = defaultEstimators
	}
	if p.jobs == 0 {
		p.jobs = 1
	}
	var err error
	if p.maxDepth, err = intKnob(cfg, knobMaxDepth, 0); err != nil {
		return forestParams{}, err
	}
	if p.minLeaf, err = intKnob(cfg, knobMinSamplesLeaf, 1); err != nil {
		return forestParams{}, err
	}
	if p.minLeaf == 0 {
		return forestParams{}, core.NewValidationError("params", "min_samples_leaf must be at least 1")
	}
	if p.maxFeatures, err = intKnob(cfg, knobMaxFeatures, 0); err != nil {
		return forestParams{}, err
	}
	seed, err := intKnob(cfg, knobSeed, 0)
	if err != nil {
		return forestParams{}, err
	}
	p.seed = uint64(seed)
	return p, nil
}

// Validate checks the knobs without fitting.
func (f RandomForest) Validate(cfg evaluation.Configuration) error {
	_, err := f.params(cfg)
	return err
}

// Fit grows the trees, at most cfg.Jobs at a time. Tree i is seeded from
// (seed, i) so the ensemble does not depend on scheduling.
func (f RandomForest) Fit(ctx context.Context, x *mat.Dense, y *mat.VecDense, cfg evaluation.Configuration) (ports.Predictor, error) {
	p, err := f.params(cfg)
	if err != nil {
		return nil, err
	}
	n, d := x.Dims()
	if n == 0 || y.Len() != n {
		return nil, fmt.Errorf("%w: %d rows, %d labels", core.ErrClassifierFailed, n, y.Len())
	}

	mtry := p.maxFeatures
	if mtry == 0 {
		mtry = int(math.Sqrt(float64(d)))
	}
	mtry = max(1, min(mtry, d))

	labels := y.RawVector().Data
	trees := make([]*treeNode, p.trees)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.jobs)
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				x:        x,
				y:        labels,
				rng:      rand.New(rand.NewPCG(p.seed, uint64(i)+1)),
				maxDepth: p.maxDepth,
				minLeaf:  p.minLeaf,
				mtry:     mtry,
			}
			sample := make([]int, n)
			for j := range sample {
				sample[j] = b.rng.IntN(n)
			}
			trees[i] = b.grow(sample, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrClassifierFailed, err)
	}
	return &forestPredictor{trees: trees, features: d}, nil
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	// prob is the positive fraction of the training rows reaching the node.
	prob float64
}

func (t *treeNode) leaf() bool { return t.left == nil }

type treeBuilder struct {
	x        *mat.Dense
	y        []float64
	rng      *rand.Rand
	maxDepth int
	minLeaf  int
	mtry     int
}

func (b *treeBuilder) grow(idx []int, depth int) *treeNode {
	pos := 0.0
	for _, i := range idx {
		pos += b.y[i]
	}
	node := &treeNode{prob: pos / float64(len(idx))}
	if pos == 0 || int(pos) == len(idx) || len(idx) < 2*b.minLeaf {
		return node
	}
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return node
	}

	_, d := b.x.Dims()
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := gini(pos, float64(len(idx)))
	sorted := make([]int, len(idx))
	for _, feature := range b.rng.Perm(d)[:b.mtry] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x.At(sorted[a], feature) < b.x.At(sorted[c], feature)
		})

		total := float64(len(sorted))
		leftPos := 0.0
		for k := 0; k < len(sorted)-1; k++ {
			leftPos += b.y[sorted[k]]
			left := k + 1
			if left < b.minLeaf || len(sorted)-left < b.minLeaf {
				continue
			}
			lo, hi := b.x.At(sorted[k], feature), b.x.At(sorted[k+1], feature)
			if lo == hi {
				continue
			}
			nl, nr := float64(left), total-float64(left)
			impurity := (nl*gini(leftPos, nl) + nr*gini(pos-leftPos, nr)) / total
			if impurity < bestImpurity-1e-12 {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	if bestFeature < 0 {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if b.x.At(i, bestFeature) <= bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	node.feature = bestFeature
	node.threshold = bestThreshold
	node.left = b.grow(left, depth+1)
	node.right = b.grow(right, depth+1)
	return node
}

func gini(pos, total float64) float64 {
	p := pos / total
	return 2 * p * (1 - p)
}

type forestPredictor struct {
	trees    []*treeNode
	features int
}

// PredictProba averages the leaf positive fractions over all trees.
func (f *forestPredictor) PredictProba(x mat.Matrix) ([]float64, error) {
	n, d := x.Dims()
	if d != f.features {
		return nil, fmt.Errorf("%w: fitted on %d features, got %d", core.ErrClassifierFailed, f.features, d)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for _, t := range f.trees {
			node := t
			for !node.leaf() {
				if x.At(i, node.feature) <= node.threshold {
					node = node.left
				} else {
					node = node.right
				}
			}
			sum += node.prob
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}
