package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golopo/domain/cohort"
	"golopo/domain/core"
	domain "golopo/domain/evaluation"
	"golopo/internal"
	"golopo/internal/aggregate"
	"golopo/internal/folds"
	"golopo/internal/labels"
	"golopo/internal/metrics"
	"golopo/ports"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ClassifierSource resolves a configuration's family to a capability.
type ClassifierSource interface {
	Get(family string) (ports.Classifier, error)
}

// Options wires a Runner.
type Options struct {
	Store       *cohort.Store
	Grid        domain.Grid
	Projector   ports.Projector
	Classifiers ClassifierSource
	Logger      *zap.Logger
	Recorder    *metrics.Recorder
}

// Runner evaluates a grid over a cohort. It holds no results between runs;
// each Run builds and returns its own aggregate.
type Runner struct {
	store       *cohort.Store
	grid        domain.Grid
	folds       *folds.Generator
	projector   ports.Projector
	classifiers []ports.Classifier
	binarizer   *labels.Binarizer
	evaluator   *Evaluator
	logger      *zap.Logger
	recorder    *metrics.Recorder
}

// NewRunner validates everything that can be checked before the first fold:
// cohort size, grid structure, label pair and every classifier configuration.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Projector == nil {
		return nil, core.NewValidationError("projector", "cannot be nil")
	}
	if opts.Classifiers == nil {
		return nil, core.NewValidationError("classifiers", "cannot be nil")
	}
	gen, err := folds.New(opts.Store)
	if err != nil {
		return nil, err
	}
	if err := opts.Grid.Validate(); err != nil {
		return nil, err
	}
	binarizer, err := labels.NewBinarizer(opts.Grid.Labels)
	if err != nil {
		return nil, err
	}

	classifiers := make([]ports.Classifier, len(opts.Grid.Configurations))
	for i, cfg := range opts.Grid.Configurations {
		clf, err := opts.Classifiers.Get(cfg.Family)
		if err != nil {
			return nil, fmt.Errorf("configuration %q: %w", cfg.Name, err)
		}
		if err := clf.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration %q: %w", cfg.Name, err)
		}
		classifiers[i] = clf
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.New(false)
	}

	return &Runner{
		store:       opts.Store,
		grid:        opts.Grid,
		folds:       gen,
		projector:   opts.Projector,
		classifiers: classifiers,
		binarizer:   binarizer,
		evaluator:   NewEvaluator(recorder),
		logger:      logger,
		recorder:    recorder,
	}, nil
}

// Run iterates configuration → dimensionality → fold in declaration order and
// returns the verified aggregate. Any fold error other than a projection
// error under the skip or clamp policy aborts the run.
func (r *Runner) Run(ctx context.Context) (*domain.Aggregate, error) {
	builder, err := aggregate.NewBuilder(r.grid, r.store.IDs())
	if err != nil {
		return nil, err
	}
	c, d, p := len(r.grid.Configurations), len(r.grid.Dimensionalities), r.folds.Len()
	r.recorder.StartGrid(c * d * p)
	r.logger.Info("grid started",
		zap.Int("configurations", c),
		zap.Int("dimensionalities", d),
		zap.Int("folds", p),
		zap.String(internal.FieldPolicy, string(r.grid.Policy())),
	)

	started := time.Now()
	for ci, cfg := range r.grid.Configurations {
		for di, dim := range r.grid.Dimensionalities {
			for fold := range r.folds.All() {
				if err := ctx.Err(); err != nil {
					return nil, r.fail(err)
				}
				entry, err := r.runFold(ctx, ci, di, fold)
				if err != nil {
					return nil, r.fail(err)
				}
				if err := builder.Append(entry); err != nil {
					return nil, r.fail(r.foldError(ci, di, fold, StageAppend, err))
				}
				r.recorder.ObserveFold(cfg.Name, string(entry.Status))
			}
			r.logger.Debug("cell finished",
				zap.String(internal.FieldConfiguration, cfg.Name),
				zap.Int(internal.FieldDimensionality, dim),
			)
		}
	}

	agg, err := builder.Complete()
	if err != nil {
		return nil, r.fail(err)
	}
	r.recorder.ObserveRun("success")
	r.logger.Info("grid finished",
		zap.Int("entries", agg.Count()),
		zap.Int("skipped", agg.CountStatus(domain.StatusSkipped)),
		zap.Duration(internal.FieldDuration, time.Since(started)),
	)
	return agg, nil
}

func (r *Runner) fail(err error) error {
	outcome := "error"
	var foldErr *domain.FoldError
	if errors.As(err, &foldErr) {
		outcome = foldErr.Stage
	}
	r.recorder.ObserveRun(outcome)
	r.logger.Error("grid aborted", zap.Error(err))
	return err
}

// runFold evaluates one (configuration, dimensionality, fold) slot.
func (r *Runner) runFold(ctx context.Context, ci, di int, fold folds.Fold) (domain.Entry, error) {
	cfg := r.grid.Configurations[ci]
	dim := r.grid.Dimensionalities[di]
	log := r.logger.With(
		zap.String(internal.FieldConfiguration, cfg.Name),
		zap.Int(internal.FieldDimensionality, dim),
		zap.Int(internal.FieldFold, fold.Index),
		zap.String(internal.FieldPatient, fold.Test.ID().String()),
	)
	start := time.Now()

	entry := domain.Entry{
		Configuration:       cfg.Name,
		ConfigurationIndex:  ci,
		Dimensionality:      dim,
		DimensionalityIndex: di,
		Fold:                fold.Index,
		Patient:             fold.Test.ID().String(),
	}

	if err := fold.CheckLeakage(); err != nil {
		return entry, r.foldError(ci, di, fold, StageLeakage, err)
	}

	trainX, trainRaw := fold.TrainingSet()
	testX, testRaw := fold.TestSet()

	trainY, err := r.binarizer.Binarize(trainRaw)
	if err != nil {
		return entry, r.foldError(ci, di, fold, StageBinarize, err)
	}
	testY, err := r.binarizer.Binarize(testRaw)
	if err != nil {
		return entry, r.foldError(ci, di, fold, StageBinarize, err)
	}

	projStart := time.Now()
	model, trainProj, err := r.project(trainX, dim, log)
	if err != nil {
		if r.grid.Policy() == domain.PolicySkip && errors.Is(err, core.ErrRankDeficient) {
			log.Warn("projection failed, fold recorded as skipped", zap.Error(err))
			entry.Status = domain.StatusSkipped
			entry.Reason = err.Error()
			entry.DurationMs = time.Since(start).Milliseconds()
			return entry, nil
		}
		return entry, r.foldError(ci, di, fold, StageProject, err)
	}
	testProj, err := model.Transform(testX)
	r.recorder.ObserveStage(metrics.StageProject, time.Since(projStart))
	if err != nil {
		return entry, r.foldError(ci, di, fold, StageProject, err)
	}
	entry.EffectiveDimensionality = model.Components()

	result, err := r.evaluator.Evaluate(ctx, r.classifiers[ci], cfg, trainProj, trainY, testProj, testY)
	if err != nil {
		stage := StageFit
		var se *stageError
		if errors.As(err, &se) {
			stage, err = se.stage, se.err
		}
		return entry, r.foldError(ci, di, fold, stage, err)
	}

	entry.Status = domain.StatusCompleted
	entry.Result = &result
	entry.DurationMs = time.Since(start).Milliseconds()
	r.recorder.ObserveStage(metrics.StageFoldWall, time.Since(start))

	fields := []zap.Field{
		zap.Int(internal.FieldEffective, entry.EffectiveDimensionality),
		zap.Float64("accuracy", result.Accuracy),
		zap.Int64("duration_ms", entry.DurationMs),
	}
	if result.AUCDefined {
		fields = append(fields, zap.Float64("auc", result.AUC))
	}
	log.Info("fold evaluated", fields...)
	return entry, nil
}

// project fits the projection on the training matrix. Under the clamp policy
// a rank-deficient request is refitted at the available rank.
func (r *Runner) project(trainX *mat.Dense, dim int, log *zap.Logger) (ports.ProjectionModel, *mat.Dense, error) {
	model, proj, err := r.projector.FitTransform(trainX, dim)
	if err == nil || r.grid.Policy() != domain.PolicyClamp {
		return model, proj, err
	}

	var rankErr *core.RankError
	if !errors.As(err, &rankErr) || rankErr.Available < 1 {
		return nil, nil, err
	}
	log.Warn("dimensionality clamped to training rank",
		zap.Int("requested", rankErr.Requested),
		zap.Int(internal.FieldEffective, rankErr.Available),
	)
	return r.projector.FitTransform(trainX, rankErr.Available)
}

func (r *Runner) foldError(ci, di int, fold folds.Fold, stage string, err error) error {
	return &domain.FoldError{
		Configuration:       r.grid.Configurations[ci].Name,
		ConfigurationIndex:  ci,
		Dimensionality:      r.grid.Dimensionalities[di],
		DimensionalityIndex: di,
		Fold:                fold.Index,
		Patient:             fold.Test.ID().String(),
		Stage:               stage,
		Err:                 err,
	}
}
