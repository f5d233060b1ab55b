package app

import (
	"context"

	"golopo/internal/errors"
	"golopo/internal/folds"
	"golopo/ports"
)

// FoldPlan describes one fold without running it
type FoldPlan struct {
	Index     int      `json:"index"`
	HeldOut   string   `json:"held_out"`
	Training  []string `json:"training"`
	TrainRows int      `json:"train_rows"`
	TestRows  int      `json:"test_rows"`
}

// PlanFolds loads the cohort and lists its folds in evaluation order. Every
// fold is checked for leakage.
func PlanFolds(ctx context.Context, source ports.CohortSource) ([]FoldPlan, error) {
	store, err := source.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cohort")
	}
	gen, err := folds.New(store)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cohort")
	}

	plans := make([]FoldPlan, 0, gen.Len())
	for fold := range gen.All() {
		if err := fold.CheckLeakage(); err != nil {
			return nil, errors.Wrap(err, "invalid fold")
		}
		plan := FoldPlan{
			Index:    fold.Index,
			HeldOut:  fold.Test.ID().String(),
			TestRows: fold.Test.Rows(),
		}
		for _, p := range fold.Train {
			plan.Training = append(plan.Training, p.ID().String())
			plan.TrainRows += p.Rows()
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
