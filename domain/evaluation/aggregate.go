package evaluation

import (
	"fmt"

	"golopo/domain/core"
)

// Aggregate is the positionally addressed result of a full grid:
// Entries[configuration][dimensionality][fold]. The axis slices name each
// position in the same order.
type Aggregate struct {
	Configurations   []string    `json:"configurations"`
	Dimensionalities []int       `json:"dimensionalities"`
	Patients         []string    `json:"patients"`
	Entries          [][][]Entry `json:"entries"`
}

// Shape returns the axis lengths (C, D, P).
func (a *Aggregate) Shape() (int, int, int) {
	return len(a.Configurations), len(a.Dimensionalities), len(a.Patients)
}

// At returns the entry at the given position.
func (a *Aggregate) At(c, d, f int) Entry {
	return a.Entries[c][d][f]
}

// Count returns the number of stored entries, sentinels included.
func (a *Aggregate) Count() int {
	n := 0
	for _, byDim := range a.Entries {
		for _, byFold := range byDim {
			n += len(byFold)
		}
	}
	return n
}

// CountStatus returns how many entries carry status s.
func (a *Aggregate) CountStatus(s EntryStatus) int {
	n := 0
	for _, byDim := range a.Entries {
		for _, byFold := range byDim {
			for _, e := range byFold {
				if e.Status == s {
					n++
				}
			}
		}
	}
	return n
}

// Verify checks that every position of the C × D × P index space holds an
// entry addressed to that position.
func (a *Aggregate) Verify() error {
	c, d, p := a.Shape()
	if len(a.Entries) != c {
		return fmt.Errorf("%w: %d configuration rows for %d configurations", core.ErrAggregateGap, len(a.Entries), c)
	}
	for ci := range a.Entries {
		if len(a.Entries[ci]) != d {
			return fmt.Errorf("%w: configuration %d has %d dimensionality rows, expected %d",
				core.ErrAggregateGap, ci, len(a.Entries[ci]), d)
		}
		for di := range a.Entries[ci] {
			if len(a.Entries[ci][di]) != p {
				return fmt.Errorf("%w: configuration %d dimensionality %d has %d folds, expected %d",
					core.ErrAggregateGap, ci, di, len(a.Entries[ci][di]), p)
			}
			for fi, e := range a.Entries[ci][di] {
				if e.ConfigurationIndex != ci || e.DimensionalityIndex != di || e.Fold != fi {
					return fmt.Errorf("%w: slot (%d,%d,%d) holds entry addressed (%d,%d,%d)",
						core.ErrOutOfOrder, ci, di, fi, e.ConfigurationIndex, e.DimensionalityIndex, e.Fold)
				}
				if e.Status == StatusCompleted && e.Result == nil {
					return fmt.Errorf("%w: slot (%d,%d,%d) is completed without a result", core.ErrAggregateGap, ci, di, fi)
				}
				if e.Status != StatusCompleted && e.Status != StatusSkipped {
					return fmt.Errorf("%w: slot (%d,%d,%d) has status %q", core.ErrAggregateGap, ci, di, fi, e.Status)
				}
			}
		}
	}
	return nil
}
