package evaluation

import (
	"fmt"
	"sort"
	"strings"

	"golopo/domain/core"
)

// Configuration is a named, immutable bundle of classifier hyperparameters.
// Params holds family-specific knobs; use Param to read them.
type Configuration struct {
	Name       string             `json:"name" yaml:"name" validate:"required"`
	Family     string             `json:"classifier" yaml:"classifier" validate:"required"`
	Estimators int                `json:"n_estimators,omitempty" yaml:"n_estimators" validate:"gte=0"`
	Jobs       int                `json:"n_jobs,omitempty" yaml:"n_jobs" validate:"gte=0"`
	Params     map[string]float64 `json:"params,omitempty" yaml:"params"`
}

// Param returns a family-specific knob or def when it is not set.
func (c Configuration) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// Clone returns a deep copy so callers cannot mutate a shared params map.
func (c Configuration) Clone() Configuration {
	out := c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return out
}

// String renders the configuration with sorted knobs.
func (c Configuration) String() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s estimators=%d jobs=%d", c.Name, c.Family, c.Estimators, c.Jobs)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%g", k, c.Params[k])
	}
	b.WriteString("]")
	return b.String()
}

// LabelPair names the raw label values of the negative and positive class.
type LabelPair struct {
	Negative float64 `json:"negative" yaml:"negative"`
	Positive float64 `json:"positive" yaml:"positive"`
}

// Kernel families understood by the projection step.
const (
	KernelRBF        = "rbf"
	KernelPolynomial = "poly"
	KernelSigmoid    = "sigmoid"
	KernelLinear     = "linear"
	KernelCosine     = "cosine"
)

// KernelSpec selects the kernel of the projection. Zero Gamma means
// 1/n_features, zero Degree means 3.
type KernelSpec struct {
	Name   string  `json:"name" yaml:"name" validate:"required,oneof=rbf poly sigmoid linear cosine"`
	Gamma  float64 `json:"gamma,omitempty" yaml:"gamma" validate:"gte=0"`
	Degree int     `json:"degree,omitempty" yaml:"degree" validate:"gte=0"`
	Coef0  float64 `json:"coef0,omitempty" yaml:"coef0"`
}

// ProjectionPolicy decides what happens when a projection cannot deliver the
// requested dimensionality.
type ProjectionPolicy string

const (
	// PolicyAbort stops the run with the projection error.
	PolicyAbort ProjectionPolicy = "abort"
	// PolicySkip records an explicit skipped entry and continues.
	PolicySkip ProjectionPolicy = "skip"
	// PolicyClamp refits with the available rank and records the effective dimensionality.
	PolicyClamp ProjectionPolicy = "clamp"
)

// Valid reports whether p is a known policy.
func (p ProjectionPolicy) Valid() bool {
	switch p {
	case PolicyAbort, PolicySkip, PolicyClamp:
		return true
	}
	return false
}

// Grid is the full evaluation plan: every configuration is evaluated at every
// dimensionality on every fold, in declaration order.
type Grid struct {
	Configurations   []Configuration  `json:"configurations" yaml:"configurations" validate:"required,min=1,dive"`
	Dimensionalities []int            `json:"dimensionalities" yaml:"dimensionalities" validate:"required,min=1,dive,gt=0"`
	Labels           LabelPair        `json:"labels" yaml:"labels"`
	Kernel           KernelSpec       `json:"kernel" yaml:"kernel"`
	OnProjectionErr  ProjectionPolicy `json:"on_projection_error" yaml:"on_projection_error"`
}

// Size returns the number of configuration × dimensionality cells.
func (g Grid) Size() int {
	return len(g.Configurations) * len(g.Dimensionalities)
}

// Validate checks the structural rules the orchestrator relies on.
func (g Grid) Validate() error {
	if len(g.Configurations) == 0 {
		return core.NewValidationError("configurations", "at least one configuration is required")
	}
	if len(g.Dimensionalities) == 0 {
		return core.NewValidationError("dimensionalities", "at least one dimensionality is required")
	}
	seen := make(map[string]bool, len(g.Configurations))
	for i, c := range g.Configurations {
		if strings.TrimSpace(c.Name) == "" {
			return core.NewValidationError("configurations", fmt.Sprintf("configuration %d has no name", i))
		}
		if seen[c.Name] {
			return core.NewValidationError("configurations", fmt.Sprintf("duplicate configuration name %q", c.Name))
		}
		seen[c.Name] = true
		if c.Family == "" {
			return core.NewValidationError("configurations", fmt.Sprintf("configuration %q has no classifier family", c.Name))
		}
		if c.Estimators < 0 || c.Jobs < 0 {
			return core.NewValidationError("configurations", fmt.Sprintf("configuration %q has negative counts", c.Name))
		}
	}
	for i, d := range g.Dimensionalities {
		if d <= 0 {
			return core.NewValidationError("dimensionalities", fmt.Sprintf("entry %d must be positive, got %d", i, d))
		}
	}
	if g.Labels.Negative == g.Labels.Positive {
		return core.NewValidationError("labels", "negative and positive values must differ")
	}
	if g.OnProjectionErr != "" && !g.OnProjectionErr.Valid() {
		return core.NewValidationError("on_projection_error", fmt.Sprintf("unknown policy %q", g.OnProjectionErr))
	}
	return nil
}

// Policy returns the projection policy, defaulting to abort.
func (g Grid) Policy() ProjectionPolicy {
	if g.OnProjectionErr == "" {
		return PolicyAbort
	}
	return g.OnProjectionErr
}

// Hash fingerprints the grid in declaration order.
func (g Grid) Hash() core.GridHash {
	parts := make([]string, 0, len(g.Configurations)+4)
	for _, c := range g.Configurations {
		parts = append(parts, c.String())
	}
	parts = append(parts,
		fmt.Sprintf("dims=%v", g.Dimensionalities),
		fmt.Sprintf("labels=%g/%g", g.Labels.Negative, g.Labels.Positive),
		fmt.Sprintf("kernel=%s/%g/%d/%g", g.Kernel.Name, g.Kernel.Gamma, g.Kernel.Degree, g.Kernel.Coef0),
		fmt.Sprintf("policy=%s", g.Policy()),
	)
	return core.ComputeGridHash(parts)
}
