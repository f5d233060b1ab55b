package testkit

import (
	"context"
	"errors"
	"sync"

	"golopo/domain/cohort"
	"golopo/domain/evaluation"
	"golopo/domain/run"
	"golopo/ports"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	generator *CohortGenerator
	sink      *MemorySink
}

// NewTestKit creates a test kit around a synthetic cohort
func NewTestKit(config CohortGeneratorConfig) (*TestKit, error) {
	gen, err := NewCohortGenerator(config)
	if err != nil {
		return nil, err
	}
	return &TestKit{generator: gen, sink: NewMemorySink("memory")}, nil
}

// Generator returns the cohort generator
func (t *TestKit) Generator() *CohortGenerator { return t.generator }

// CohortSource returns a source that regenerates the cohort on every Load
func (t *TestKit) CohortSource() ports.CohortSource {
	return &SyntheticSource{generator: t.generator}
}

// Sink returns the shared in-memory result sink
func (t *TestKit) Sink() *MemorySink { return t.sink }

// Grid returns a one-configuration grid labelled for the generator's pair
func (t *TestKit) Grid(family string, dims ...int) evaluation.Grid {
	if len(dims) == 0 {
		dims = []int{2, 4}
	}
	return evaluation.Grid{
		Configurations: []evaluation.Configuration{
			{Name: family, Family: family, Estimators: 10, Jobs: 2},
		},
		Dimensionalities: dims,
		Labels: evaluation.LabelPair{
			Negative: t.generator.config.Background,
			Positive: t.generator.config.ROI,
		},
		Kernel: evaluation.KernelSpec{Name: evaluation.KernelRBF},
	}
}

// SyntheticSource is a ports.CohortSource backed by the generator
type SyntheticSource struct {
	generator *CohortGenerator
}

// NewSyntheticSource wraps a generator
func NewSyntheticSource(generator *CohortGenerator) *SyntheticSource {
	return &SyntheticSource{generator: generator}
}

// Load generates the cohort
func (s *SyntheticSource) Load(ctx context.Context) (*cohort.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.generator.Store()
}

// MemorySink records everything handed to it
type MemorySink struct {
	name string
	fail error

	mu      sync.Mutex
	results []PersistedRun
}

// PersistedRun is one Persist call
type PersistedRun struct {
	Manifest  *run.Manifest
	Aggregate *evaluation.Aggregate
}

// NewMemorySink creates an empty sink
func NewMemorySink(name string) *MemorySink {
	return &MemorySink{name: name}
}

// FailWith makes every later Persist return err
func (s *MemorySink) FailWith(err error) { s.fail = err }

func (s *MemorySink) Name() string { return s.name }

// Persist stores the run
func (s *MemorySink) Persist(ctx context.Context, manifest *run.Manifest, agg *evaluation.Aggregate) error {
	if s.fail != nil {
		return s.fail
	}
	if manifest == nil || agg == nil {
		return errors.New("memory sink: nil manifest or aggregate")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, PersistedRun{Manifest: manifest, Aggregate: agg})
	return nil
}

// Runs returns the persisted runs in call order
func (s *MemorySink) Runs() []PersistedRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PersistedRun(nil), s.results...)
}
