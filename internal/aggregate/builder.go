// Package aggregate assembles the positional result aggregate of a grid run.
package aggregate

import (
	"fmt"

	"golopo/domain/core"
	"golopo/domain/evaluation"
)

// Builder accepts entries in configuration → dimensionality → fold order and
// refuses anything else. A Builder belongs to one run.
type Builder struct {
	agg  *evaluation.Aggregate
	next [3]int
	done bool
}

// NewBuilder sizes the aggregate for the grid and patient order.
func NewBuilder(grid evaluation.Grid, patients []core.PatientID) (*Builder, error) {
	if len(grid.Configurations) == 0 || len(grid.Dimensionalities) == 0 {
		return nil, core.NewValidationError("grid", "configurations and dimensionalities must be non-empty")
	}
	if len(patients) == 0 {
		return nil, core.NewValidationError("patients", "at least one patient is required")
	}

	agg := &evaluation.Aggregate{
		Configurations:   make([]string, len(grid.Configurations)),
		Dimensionalities: append([]int(nil), grid.Dimensionalities...),
		Patients:         make([]string, len(patients)),
		Entries:          make([][][]evaluation.Entry, len(grid.Configurations)),
	}
	for i, c := range grid.Configurations {
		agg.Configurations[i] = c.Name
		agg.Entries[i] = make([][]evaluation.Entry, len(grid.Dimensionalities))
		for j := range grid.Dimensionalities {
			agg.Entries[i][j] = make([]evaluation.Entry, 0, len(patients))
		}
	}
	for i, p := range patients {
		agg.Patients[i] = p.String()
	}
	return &Builder{agg: agg}, nil
}

// Expected returns the address of the next entry.
func (b *Builder) Expected() (configuration, dimensionality, fold int) {
	return b.next[0], b.next[1], b.next[2]
}

// Len returns how many entries have been appended.
func (b *Builder) Len() int { return b.agg.Count() }

// Append stores e at the next position. The entry's address must match it.
func (b *Builder) Append(e evaluation.Entry) error {
	if b.done {
		return fmt.Errorf("%w: aggregate already complete", core.ErrOutOfOrder)
	}
	c, d, f := b.Expected()
	if e.ConfigurationIndex != c || e.DimensionalityIndex != d || e.Fold != f {
		return fmt.Errorf("%w: expected (%d,%d,%d), got (%d,%d,%d)",
			core.ErrOutOfOrder, c, d, f, e.ConfigurationIndex, e.DimensionalityIndex, e.Fold)
	}
	if e.Configuration != b.agg.Configurations[c] || e.Dimensionality != b.agg.Dimensionalities[d] ||
		e.Patient != b.agg.Patients[f] {
		return fmt.Errorf("%w: entry labels (%s,%d,%s) do not match slot (%s,%d,%s)", core.ErrOutOfOrder,
			e.Configuration, e.Dimensionality, e.Patient,
			b.agg.Configurations[c], b.agg.Dimensionalities[d], b.agg.Patients[f])
	}
	switch e.Status {
	case evaluation.StatusCompleted:
		if e.Result == nil {
			return fmt.Errorf("%w: completed entry (%d,%d,%d) has no result", core.ErrAggregateGap, c, d, f)
		}
	case evaluation.StatusSkipped:
		if e.Result != nil || e.Reason == "" {
			return fmt.Errorf("%w: skipped entry (%d,%d,%d) needs a reason and no result", core.ErrAggregateGap, c, d, f)
		}
	default:
		return fmt.Errorf("%w: entry (%d,%d,%d) has status %q", core.ErrAggregateGap, c, d, f, e.Status)
	}

	b.agg.Entries[c][d] = append(b.agg.Entries[c][d], e)
	b.advance()
	return nil
}

func (b *Builder) advance() {
	b.next[2]++
	if b.next[2] < len(b.agg.Patients) {
		return
	}
	b.next[2] = 0
	b.next[1]++
	if b.next[1] < len(b.agg.Dimensionalities) {
		return
	}
	b.next[1] = 0
	b.next[0]++
	if b.next[0] == len(b.agg.Configurations) {
		b.done = true
	}
}

// Complete verifies the full C × D × P index space and hands the aggregate
// over. The builder must not be used afterwards.
func (b *Builder) Complete() (*evaluation.Aggregate, error) {
	if !b.done {
		c, d, f := b.Expected()
		return nil, fmt.Errorf("%w: next expected entry (%d,%d,%d), have %d", core.ErrAggregateGap, c, d, f, b.Len())
	}
	if err := b.agg.Verify(); err != nil {
		return nil, err
	}
	agg := b.agg
	b.agg = nil
	return agg, nil
}
