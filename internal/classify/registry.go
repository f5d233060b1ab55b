// Package classify holds the classifier families a grid configuration can
// name. Each family documents its own knobs and rejects any it does not know.
package classify

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/ports"
)

// Family names accepted in the "classifier" field of a configuration.
const (
	FamilyRandomForest       = "random-forest"
	FamilyLogisticRegression = "logistic-regression"
	FamilyNearestCentroid    = "nearest-centroid"
)

var errSingleClass = errors.New("training labels contain a single class")

// FamilyInfo describes a family for listings.
type FamilyInfo struct {
	Name        string
	Knobs       []string
	Description string
}

// Registry maps family names to classifier capabilities.
type Registry struct {
	families map[string]ports.Classifier
}

// NewRegistry registers the given classifiers under their family names.
func NewRegistry(classifiers ...ports.Classifier) *Registry {
	r := &Registry{families: make(map[string]ports.Classifier, len(classifiers))}
	for _, c := range classifiers {
		r.families[normalize(c.Family())] = c
	}
	return r
}

// DefaultRegistry knows every built-in family.
func DefaultRegistry() *Registry {
	return NewRegistry(RandomForest{}, LogisticRegression{}, NearestCentroid{})
}

// Get returns the classifier for family.
func (r *Registry) Get(family string) (ports.Classifier, error) {
	c, ok := r.families[normalize(family)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", core.ErrUnknownFamily, family, strings.Join(r.Families(), ", "))
	}
	return c, nil
}

// Validate resolves the family of cfg and lets it check the knobs.
func (r *Registry) Validate(cfg evaluation.Configuration) error {
	c, err := r.Get(cfg.Family)
	if err != nil {
		return err
	}
	return c.Validate(cfg)
}

// ValidateGrid checks every configuration of a grid.
func (r *Registry) ValidateGrid(grid evaluation.Grid) error {
	for _, cfg := range grid.Configurations {
		if err := r.Validate(cfg); err != nil {
			return fmt.Errorf("configuration %q: %w", cfg.Name, err)
		}
	}
	return nil
}

// Families lists registered family names in sorted order.
func (r *Registry) Families() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the built-in families for display.
func Describe() []FamilyInfo {
	return []FamilyInfo{
		{
			Name:  FamilyRandomForest,
			Knobs: []string{knobMaxDepth, knobMinSamplesLeaf, knobMaxFeatures, knobSeed},
			Description: fmt.Sprintf("Bagged CART trees with gini splits (n_estimators default %d, n_jobs bounds the tree workers)",
				defaultEstimators),
		},
		{
			Name:  FamilyLogisticRegression,
			Knobs: []string{knobC, knobMaxIter},
			Description: fmt.Sprintf("L2-regularized logistic regression fitted with L-BFGS (C=%g, max_iter=%d)",
				defaultC, defaultMaxIter),
		},
		{
			Name:        FamilyNearestCentroid,
			Description: "Assigns each row to the closer class centroid",
		},
	}
}

func normalize(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

// checkKnobs rejects params outside allowed.
func checkKnobs(cfg evaluation.Configuration, allowed ...string) error {
	for name := range cfg.Params {
		known := false
		for _, a := range allowed {
			if name == a {
				known = true
				break
			}
		}
		if !known {
			return core.NewValidationError("params", fmt.Sprintf("%s does not accept knob %q", cfg.Family, name))
		}
	}
	return nil
}

// intKnob reads a non-negative whole-number knob.
func intKnob(cfg evaluation.Configuration, name string, def int) (int, error) {
	v := cfg.Param(name, float64(def))
	if v < 0 || v != math.Trunc(v) {
		return 0, core.NewValidationError("params", fmt.Sprintf("%s must be a non-negative integer, got %g", name, v))
	}
	return int(v), nil
}
