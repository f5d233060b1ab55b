// Package evaluation drives the Leave-One-Patient-Out grid: every
// configuration at every dimensionality on every fold.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"golopo/domain/core"
	domain "golopo/domain/evaluation"
	"golopo/internal/classify"
	"golopo/internal/metrics"
	"golopo/ports"

	"gonum.org/v1/gonum/mat"
)

// Stage names reported in FoldError.Stage and in logs.
const (
	StageLeakage  = "leakage-check"
	StageBinarize = "binarize"
	StageProject  = "project"
	StageFit      = "fit"
	StagePredict  = "predict"
	StageScore    = "score"
	StageAppend   = "aggregate"
)

// stageError remembers which step of a fold failed.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// Evaluator runs one classifier on one fold's projections.
type Evaluator struct {
	recorder *metrics.Recorder
}

// NewEvaluator creates an evaluator reporting stage timings to recorder.
func NewEvaluator(recorder *metrics.Recorder) *Evaluator {
	return &Evaluator{recorder: recorder}
}

// Evaluate fits clf on the training projection and scores the held-out one.
// Labels must already be binarized.
func (e *Evaluator) Evaluate(ctx context.Context, clf ports.Classifier, cfg domain.Configuration,
	trainX *mat.Dense, trainY *mat.VecDense, testX *mat.Dense, testY *mat.VecDense) (domain.FoldResult, error) {

	start := time.Now()
	predictor, err := clf.Fit(ctx, trainX, trainY, cfg.Clone())
	e.recorder.ObserveStage(metrics.StageFit, time.Since(start))
	if err != nil {
		return domain.FoldResult{}, &stageError{stage: StageFit, err: asClassifierError(err)}
	}

	start = time.Now()
	scores, err := predictor.PredictProba(testX)
	e.recorder.ObserveStage(metrics.StagePredict, time.Since(start))
	if err != nil {
		return domain.FoldResult{}, &stageError{stage: StagePredict, err: asClassifierError(err)}
	}

	result, err := classify.Score(scores, testY.RawVector().Data)
	if err != nil {
		return domain.FoldResult{}, &stageError{stage: StageScore, err: err}
	}
	result.TrainRows = trainY.Len()
	result.TestRows = testY.Len()
	return result, nil
}

// asClassifierError keeps classifier failures in the classifier taxonomy even
// when a third-party implementation returns a plain error.
func asClassifierError(err error) error {
	if core.IsClassifierError(err) || core.IsValidationError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrClassifierFailed, err)
}
