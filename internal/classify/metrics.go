package classify

import (
	"fmt"

	"golopo/domain/core"
	"golopo/domain/evaluation"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Threshold separates positive from negative predictions. A score equal to
// the threshold is negative.
const Threshold = 0.5

// Score summarizes positive-class scores against binarized truth.
func Score(scores, truth []float64) (evaluation.FoldResult, error) {
	if len(scores) != len(truth) {
		return evaluation.FoldResult{}, fmt.Errorf("%w: %d scores for %d labels", core.ErrClassifierFailed, len(scores), len(truth))
	}
	if len(scores) == 0 {
		return evaluation.FoldResult{}, fmt.Errorf("%w: no rows to score", core.ErrClassifierFailed)
	}

	var cm evaluation.Confusion
	for i, s := range scores {
		predicted := s > Threshold
		actual := truth[i] > 0.5
		switch {
		case predicted && actual:
			cm.TruePositive++
		case predicted && !actual:
			cm.FalsePositive++
		case !predicted && !actual:
			cm.TrueNegative++
		default:
			cm.FalseNegative++
		}
	}

	r := evaluation.FoldResult{
		Confusion:   cm,
		Accuracy:    ratio(cm.TruePositive+cm.TrueNegative, len(scores)),
		Sensitivity: ratio(cm.TruePositive, cm.TruePositive+cm.FalseNegative),
		Specificity: ratio(cm.TrueNegative, cm.TrueNegative+cm.FalsePositive),
		Precision:   ratio(cm.TruePositive, cm.TruePositive+cm.FalsePositive),
		Scores:      append([]float64(nil), scores...),
	}
	if r.Precision+r.Sensitivity > 0 {
		r.F1 = 2 * r.Precision * r.Sensitivity / (r.Precision + r.Sensitivity)
	}
	r.AUC, r.AUCDefined = AUC(scores, truth)
	return r, nil
}

// AUC returns the area under the ROC curve. It is undefined when truth holds
// a single class.
func AUC(scores, truth []float64) (float64, bool) {
	y := append([]float64(nil), scores...)
	classes := make([]bool, len(truth))
	var pos int
	for i, t := range truth {
		classes[i] = t > 0.5
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(truth) {
		return 0, false
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
