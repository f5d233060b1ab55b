package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/domain/run"
	"golopo/internal/errors"
	"golopo/ports"

	"github.com/jmoiron/sqlx"
)

// entryBatch keeps a multi-row insert well below the 65535 bind parameter limit.
const entryBatch = 1000

// RunRepository stores completed runs in PostgreSQL. It implements
// ports.ResultSink: the run row and every entry row are written in one
// transaction.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Name() string { return "postgres" }

type entryRow struct {
	RunID                   string          `db:"run_id"`
	ConfigurationIndex      int             `db:"configuration_index"`
	DimensionalityIndex     int             `db:"dimensionality_index"`
	Fold                    int             `db:"fold"`
	Configuration           string          `db:"configuration"`
	Dimensionality          int             `db:"dimensionality"`
	EffectiveDimensionality int             `db:"effective_dimensionality"`
	Patient                 string          `db:"patient"`
	Status                  string          `db:"status"`
	Reason                  sql.NullString  `db:"reason"`
	Accuracy                sql.NullFloat64 `db:"accuracy"`
	Sensitivity             sql.NullFloat64 `db:"sensitivity"`
	Specificity             sql.NullFloat64 `db:"specificity"`
	F1                      sql.NullFloat64 `db:"f1"`
	AUC                     sql.NullFloat64 `db:"auc"`
	DurationMs              int64           `db:"duration_ms"`
}

const insertEntry = `
	INSERT INTO lopo_entries (
		run_id, configuration_index, dimensionality_index, fold, configuration, dimensionality,
		effective_dimensionality, patient, status, reason, accuracy, sensitivity, specificity, f1, auc, duration_ms
	) VALUES (
		:run_id, :configuration_index, :dimensionality_index, :fold, :configuration, :dimensionality,
		:effective_dimensionality, :patient, :status, :reason, :accuracy, :sensitivity, :specificity, :f1, :auc, :duration_ms
	)`

// Persist writes the run and its entries atomically
func (r *RunRepository) Persist(ctx context.Context, manifest *run.Manifest, agg *evaluation.Aggregate) error {
	if err := agg.Verify(); err != nil {
		return errors.SinkError(r.Name(), err)
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return errors.SinkError(r.Name(), err)
	}
	aggJSON, err := json.Marshal(agg)
	if err != nil {
		return errors.SinkError(r.Name(), err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.SinkError(r.Name(), errors.DatabaseError("failed to begin transaction", err))
	}
	defer tx.Rollback()

	c, d, p := agg.Shape()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO lopo_runs (run_id, fingerprint, cohort_hash, grid_hash, code_version, policy,
			configurations, dimensionalities, patients, started_at, finished_at, manifest, aggregate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, manifest.RunID.String(), manifest.Fingerprint.Fingerprint.String(), manifest.CohortHash.String(),
		manifest.GridHash.String(), manifest.CodeVersion, string(manifest.Grid.Policy()),
		c, d, p, manifest.StartedAt.Time(), manifest.FinishedAt.Time(), manifestJSON, aggJSON)
	if err != nil {
		return errors.SinkError(r.Name(), errors.DatabaseError("failed to insert run", err))
	}

	rows := entryRows(manifest.RunID, agg)
	for start := 0; start < len(rows); start += entryBatch {
		end := min(start+entryBatch, len(rows))
		if _, err := tx.NamedExecContext(ctx, insertEntry, rows[start:end]); err != nil {
			return errors.SinkError(r.Name(), errors.DatabaseError("failed to insert entries", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.SinkError(r.Name(), errors.DatabaseError("failed to commit run", err))
	}
	return nil
}

// GetRun loads a stored run by id
func (r *RunRepository) GetRun(ctx context.Context, runID core.RunID) (*run.Manifest, *evaluation.Aggregate, error) {
	var row struct {
		Manifest  []byte `db:"manifest"`
		Aggregate []byte `db:"aggregate"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT manifest, aggregate FROM lopo_runs WHERE run_id = $1
	`, runID.String())
	if err == sql.ErrNoRows {
		return nil, nil, errors.NotFound("run " + runID.String())
	}
	if err != nil {
		return nil, nil, errors.DatabaseError("failed to load run", err)
	}

	var manifest run.Manifest
	if err := json.Unmarshal(row.Manifest, &manifest); err != nil {
		return nil, nil, errors.Wrap(err, "failed to decode manifest")
	}
	var agg evaluation.Aggregate
	if err := json.Unmarshal(row.Aggregate, &agg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to decode aggregate")
	}
	if err := agg.Verify(); err != nil {
		return nil, nil, errors.Wrapf(err, "stored run %s", runID)
	}
	return &manifest, &agg, nil
}

// ListRuns returns the most recent runs first
func (r *RunRepository) ListRuns(ctx context.Context, filters ports.RunFilters) ([]run.Summary, error) {
	query := `
		SELECT run_id, fingerprint, code_version, policy, configurations, dimensionalities, patients, started_at, finished_at
		FROM lopo_runs
	`
	args := []interface{}{}
	if filters.Fingerprint != "" {
		query += " WHERE fingerprint = ?"
		args = append(args, filters.Fingerprint.String())
	}
	query += " ORDER BY started_at DESC, run_id DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filters.Offset)
	}

	var runs []run.Summary
	if err := r.db.SelectContext(ctx, &runs, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return runs, nil
}

// FindByFingerprint returns the ids of runs that share a determinism fingerprint
func (r *RunRepository) FindByFingerprint(ctx context.Context, fingerprint core.Hash) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT run_id FROM lopo_runs WHERE fingerprint = $1 ORDER BY started_at
	`, fingerprint.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to query fingerprint", err)
	}
	return ids, nil
}

func entryRows(runID core.RunID, agg *evaluation.Aggregate) []entryRow {
	rows := make([]entryRow, 0, agg.Count())
	for _, byDim := range agg.Entries {
		for _, byFold := range byDim {
			for _, e := range byFold {
				row := entryRow{
					RunID:                   runID.String(),
					ConfigurationIndex:      e.ConfigurationIndex,
					DimensionalityIndex:     e.DimensionalityIndex,
					Fold:                    e.Fold,
					Configuration:           e.Configuration,
					Dimensionality:          e.Dimensionality,
					EffectiveDimensionality: e.EffectiveDimensionality,
					Patient:                 e.Patient,
					Status:                  string(e.Status),
					Reason:                  sql.NullString{String: e.Reason, Valid: e.Reason != ""},
					DurationMs:              e.DurationMs,
				}
				if res := e.Result; res != nil {
					row.Accuracy = sql.NullFloat64{Float64: res.Accuracy, Valid: true}
					row.Sensitivity = sql.NullFloat64{Float64: res.Sensitivity, Valid: true}
					row.Specificity = sql.NullFloat64{Float64: res.Specificity, Valid: true}
					row.F1 = sql.NullFloat64{Float64: res.F1, Valid: true}
					row.AUC = sql.NullFloat64{Float64: res.AUC, Valid: res.AUCDefined}
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}
