package evaluation

import "fmt"

// FoldError pins a failure to the grid cell and fold that produced it, with
// enough context to rerun that single fold.
type FoldError struct {
	Configuration       string
	ConfigurationIndex  int
	Dimensionality      int
	DimensionalityIndex int
	Fold                int
	Patient             string
	Stage               string
	Err                 error
}

func (e *FoldError) Error() string {
	return fmt.Sprintf("configuration %q (#%d) dimensionality %d (#%d) fold %d (patient %s) %s: %v",
		e.Configuration, e.ConfigurationIndex, e.Dimensionality, e.DimensionalityIndex,
		e.Fold, e.Patient, e.Stage, e.Err)
}

func (e *FoldError) Unwrap() error { return e.Err }
