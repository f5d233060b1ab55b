// Package metrics exposes Prometheus collectors for grid runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "lopo"

// Stage names observed by the fold duration histogram.
const (
	StageProject  = "project"
	StageFit      = "fit"
	StagePredict  = "predict"
	StagePersist  = "persist"
	StageFoldWall = "fold"
)

// Recorder owns a private registry so tests and runs never collide on the
// global one.
type Recorder struct {
	registry *prometheus.Registry

	folds     *prometheus.CounterVec
	stages    *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	gridSize  prometheus.Gauge
	completed prometheus.Gauge
	auc       *prometheus.GaugeVec
}

// New registers the collectors. withRuntime adds Go runtime and process
// collectors, which the metrics server wants and unit tests do not.
func New(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		folds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "folds_total",
				Help:      "Fold evaluations by configuration and status",
			},
			[]string{"configuration", "status"},
		),
		stages: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent per fold stage",
				Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"stage"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Grid runs by outcome",
			},
			[]string{"outcome"},
		),
		gridSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_entries",
			Help:      "Entries expected in the aggregate of the current run",
		}),
		completed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_entries_done",
			Help:      "Entries appended to the aggregate so far",
		}),
		auc: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cell_mean_auc",
				Help:      "Mean fold AUC per configuration and dimensionality",
			},
			[]string{"configuration", "dimensionality"},
		),
	}
	r.registry.MustRegister(r.folds, r.stages, r.runs, r.gridSize, r.completed, r.auc)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// StartGrid resets progress for a run of size entries.
func (r *Recorder) StartGrid(entries int) {
	r.gridSize.Set(float64(entries))
	r.completed.Set(0)
}

// ObserveFold counts a finished entry.
func (r *Recorder) ObserveFold(configuration, status string) {
	r.folds.WithLabelValues(configuration, status).Inc()
	r.completed.Inc()
}

// ObserveStage records one stage duration.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun counts a finished run; outcome is "success" or an error code.
func (r *Recorder) ObserveRun(outcome string) {
	r.runs.WithLabelValues(outcome).Inc()
}

// SetCellAUC publishes the mean AUC of a grid cell.
func (r *Recorder) SetCellAUC(configuration string, dimensionality int, auc float64) {
	r.auc.WithLabelValues(configuration, fmt.Sprint(dimensionality)).Set(auc)
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
