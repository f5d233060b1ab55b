// Package report summarizes an aggregate per grid cell and renders it as
// Markdown or HTML.
package report

import (
	"github.com/montanaflynn/stats"

	"golopo/domain/evaluation"
)

// CellSummary aggregates the folds of one (configuration, dimensionality) cell.
type CellSummary struct {
	Configuration  string  `json:"configuration"`
	Dimensionality int     `json:"dimensionality"`
	Folds          int     `json:"folds"`
	Completed      int     `json:"completed"`
	Skipped        int     `json:"skipped"`
	Clamped        int     `json:"clamped"`
	AUCFolds       int     `json:"auc_folds"`
	MeanAUC        float64 `json:"mean_auc"`
	StdAUC         float64 `json:"std_auc"`
	MedianAUC      float64 `json:"median_auc"`
	MinAUC         float64 `json:"min_auc"`
	MeanAccuracy   float64 `json:"mean_accuracy"`
	MeanSens       float64 `json:"mean_sensitivity"`
	MeanSpec       float64 `json:"mean_specificity"`
	MeanF1         float64 `json:"mean_f1"`
}

// Summarize walks the aggregate in positional order.
func Summarize(agg *evaluation.Aggregate) ([]CellSummary, error) {
	if err := agg.Verify(); err != nil {
		return nil, err
	}

	var out []CellSummary
	for ci, byDim := range agg.Entries {
		for di, byFold := range byDim {
			cell := CellSummary{
				Configuration:  agg.Configurations[ci],
				Dimensionality: agg.Dimensionalities[di],
				Folds:          len(byFold),
			}
			var auc, acc, sens, spec, f1 stats.Float64Data
			for _, e := range byFold {
				if !e.Completed() {
					cell.Skipped++
					continue
				}
				cell.Completed++
				if e.EffectiveDimensionality != e.Dimensionality {
					cell.Clamped++
				}
				acc = append(acc, e.Result.Accuracy)
				sens = append(sens, e.Result.Sensitivity)
				spec = append(spec, e.Result.Specificity)
				f1 = append(f1, e.Result.F1)
				if e.Result.AUCDefined {
					auc = append(auc, e.Result.AUC)
				}
			}

			cell.AUCFolds = len(auc)
			if len(auc) > 0 {
				cell.MeanAUC, _ = auc.Mean()
				cell.StdAUC, _ = auc.StandardDeviation()
				cell.MedianAUC, _ = auc.Median()
				cell.MinAUC, _ = auc.Min()
			}
			if len(acc) > 0 {
				cell.MeanAccuracy, _ = stats.Mean(acc)
				cell.MeanSens, _ = stats.Mean(sens)
				cell.MeanSpec, _ = stats.Mean(spec)
				cell.MeanF1, _ = stats.Mean(f1)
			}
			out = append(out, cell)
		}
	}
	return out, nil
}

// Best returns the cell with the highest mean AUC, ties broken by grid order.
func Best(cells []CellSummary) (CellSummary, bool) {
	var best CellSummary
	found := false
	for _, c := range cells {
		if c.AUCFolds == 0 {
			continue
		}
		if !found || c.MeanAUC > best.MeanAUC {
			best, found = c, true
		}
	}
	return best, found
}
