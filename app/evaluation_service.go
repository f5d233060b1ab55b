package app

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"golopo/domain/core"
	domain "golopo/domain/evaluation"
	"golopo/domain/run"
	"golopo/internal"
	"golopo/internal/errors"
	"golopo/internal/evaluation"
	"golopo/internal/metrics"
	"golopo/internal/profiling"
	"golopo/internal/projection"
	"golopo/internal/report"
	"golopo/ports"

	"go.uber.org/zap"
)

// EvaluationService runs a LOPO grid end to end: load the cohort, evaluate
// every (configuration, dimensionality, fold), then hand the aggregate to
// every sink.
type EvaluationService struct {
	source      ports.CohortSource
	classifiers evaluation.ClassifierSource
	sinks       []ports.ResultSink
	recorder    *metrics.Recorder
	logger      *zap.Logger
	codeVersion string
}

// EvaluationRequest defines the inputs of one run
type EvaluationRequest struct {
	Grid  domain.Grid
	RunID core.RunID // optional, will be generated if empty
}

// EvaluationResult contains the complete output of a run
type EvaluationResult struct {
	Manifest  *run.Manifest            `json:"manifest"`
	Aggregate *domain.Aggregate        `json:"aggregate"`
	Profile   *profiling.CohortProfile `json:"profile"`
	Cells     []report.CellSummary     `json:"cells"`
	Persisted []string                 `json:"persisted"`
	RuntimeMs int64                    `json:"runtime_ms"`
}

// NewEvaluationService creates an evaluation service. recorder and logger may be nil.
func NewEvaluationService(
	source ports.CohortSource,
	classifiers evaluation.ClassifierSource,
	sinks []ports.ResultSink,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	codeVersion string,
) *EvaluationService {
	if recorder == nil {
		recorder = metrics.New(false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		source:      source,
		classifiers: classifiers,
		sinks:       sinks,
		recorder:    recorder,
		logger:      logger,
		codeVersion: codeVersion,
	}
}

// Recorder returns the metrics recorder the service reports to
func (s *EvaluationService) Recorder() *metrics.Recorder { return s.recorder }

// Run executes the grid. When the grid completes but a sink fails, the
// result is returned together with the sink error.
func (s *EvaluationService) Run(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error) {
	startTime := time.Now()

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	logger := s.logger.With(zap.String(internal.FieldRun, runID.String()))

	store, err := s.source.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cohort")
	}

	profile, err := profiling.NewProfiler(req.Grid.Labels).Profile(store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to profile cohort")
	}
	for _, w := range profile.Warnings() {
		logger.Warn("cohort warning", zap.String("warning", w))
	}

	projector, err := projection.New(req.Grid.Kernel)
	if err != nil {
		return nil, errors.Wrap(err, "invalid kernel")
	}
	runner, err := evaluation.NewRunner(evaluation.Options{
		Store:       store,
		Grid:        req.Grid,
		Projector:   projector,
		Classifiers: s.classifiers,
		Logger:      logger,
		Recorder:    s.recorder,
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid run setup")
	}

	manifest := run.NewManifest(runID, req.Grid, store.IDs(), store.Hash(), s.codeVersion)
	if err := manifest.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid run manifest")
	}

	agg, err := runner.Run(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "evaluation aborted")
	}
	manifest.Finish()

	cells, err := report.Summarize(agg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize aggregate")
	}
	for _, c := range cells {
		if c.AUCFolds > 0 {
			s.recorder.SetCellAUC(c.Configuration, c.Dimensionality, c.MeanAUC)
		}
	}

	result := &EvaluationResult{
		Manifest:  manifest,
		Aggregate: agg,
		Profile:   profile,
		Cells:     cells,
	}
	persistErr := s.persist(ctx, logger, result)
	result.RuntimeMs = time.Since(startTime).Milliseconds()

	if best, ok := report.Best(cells); ok {
		logger.Info("best cell",
			zap.String(internal.FieldConfiguration, best.Configuration),
			zap.Int(internal.FieldDimensionality, best.Dimensionality),
			zap.Float64("mean_auc", best.MeanAUC),
		)
	}
	return result, persistErr
}

// persist hands the run to every sink. A failing sink does not stop the
// others; all failures are returned joined.
func (s *EvaluationService) persist(ctx context.Context, logger *zap.Logger, result *EvaluationResult) error {
	var errs []error
	for _, sink := range s.sinks {
		started := time.Now()
		err := sink.Persist(ctx, result.Manifest, result.Aggregate)
		s.recorder.ObserveStage(metrics.StagePersist, time.Since(started))
		if err != nil {
			logger.Error("sink failed", zap.String(internal.FieldSink, sink.Name()), zap.Error(err))
			if !errors.IsAppError(err) {
				err = errors.SinkError(sink.Name(), err)
			}
			errs = append(errs, err)
			continue
		}
		result.Persisted = append(result.Persisted, sink.Name())
		logger.Info("run persisted", zap.String(internal.FieldSink, sink.Name()))
	}
	return stderrors.Join(errs...)
}

// WriteReport renders the run as report.md and report.html under dir and
// returns the written paths.
func WriteReport(dir string, manifest *run.Manifest, agg *domain.Aggregate) ([]string, error) {
	md, err := report.Markdown(manifest, agg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render report")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}
	base := "report"
	if manifest != nil {
		base = "report-" + manifest.RunID.String()
	}
	mdPath := filepath.Join(dir, base+".md")
	htmlPath := filepath.Join(dir, base+".html")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", mdPath)
	}
	if err := os.WriteFile(htmlPath, report.HTML(md), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", htmlPath)
	}
	return []string{mdPath, htmlPath}, nil
}
