package migration

import (
	"context"
	"crypto/sha256"
	"fmt"

	"golopo/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// step is one idempotent schema statement
type step struct {
	version string
	name    string
	sql     string
}

func (s step) checksum() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s.sql)))
}

// Status is the applied state of one step
type Status struct {
	Version string
	Name    string
	Applied bool
	// Drifted is set when the recorded checksum differs from the step's SQL.
	Drifted bool
}

// Steps lists the schema step names in execution order.
func (r *MigrationRunner) Steps() []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.name
	}
	return out
}

// Run executes all pending migrations in order and records each one in
// schema_migrations together with its checksum.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := ensureTable(ctx, db); err != nil {
		return err
	}
	applied, err := appliedChecksums(ctx, db)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if _, ok := applied[s.version]; ok {
			continue
		}
		if err := apply(ctx, db, s); err != nil {
			return err
		}
	}
	return nil
}

// Status reports every step with its applied state
func (r *MigrationRunner) Status(ctx context.Context, db *sqlx.DB) ([]Status, error) {
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedChecksums(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Status, len(steps))
	for i, s := range steps {
		sum, ok := applied[s.version]
		out[i] = Status{Version: s.version, Name: s.name, Applied: ok, Drifted: ok && sum != s.checksum()}
	}
	return out, nil
}

func ensureTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return errors.DatabaseError("failed to create schema_migrations table", err)
	}
	return nil
}

func appliedChecksums(ctx context.Context, db *sqlx.DB) (map[string]string, error) {
	var rows []struct {
		Version  string `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT version, checksum FROM schema_migrations`); err != nil {
		return nil, errors.DatabaseError("failed to read applied migrations", err)
	}
	applied := make(map[string]string, len(rows))
	for _, row := range rows {
		applied[row.Version] = row.Checksum
	}
	return applied, nil
}

func apply(ctx context.Context, db *sqlx.DB, s step) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin migration "+s.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.sql); err != nil {
		return errors.DatabaseError("failed to "+s.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)`), s.version, s.checksum()); err != nil {
		return errors.DatabaseError("failed to record migration "+s.version, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit migration "+s.version, err)
	}
	return nil
}

var steps = []step{
	{
		version: "001",
		name:    "create lopo_runs table",
		sql: `
		CREATE TABLE IF NOT EXISTS lopo_runs (
			run_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			cohort_hash TEXT NOT NULL,
			grid_hash TEXT NOT NULL,
			code_version TEXT NOT NULL,
			policy VARCHAR(16) NOT NULL,
			configurations INTEGER NOT NULL,
			dimensionalities INTEGER NOT NULL,
			patients INTEGER NOT NULL,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
			manifest JSONB NOT NULL,
			aggregate JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		version: "002",
		name:    "create lopo_entries table",
		sql: `
		CREATE TABLE IF NOT EXISTS lopo_entries (
			run_id TEXT NOT NULL REFERENCES lopo_runs(run_id) ON DELETE CASCADE,
			configuration_index INTEGER NOT NULL,
			dimensionality_index INTEGER NOT NULL,
			fold INTEGER NOT NULL,
			configuration TEXT NOT NULL,
			dimensionality INTEGER NOT NULL,
			effective_dimensionality INTEGER NOT NULL,
			patient TEXT NOT NULL,
			status VARCHAR(16) NOT NULL,
			reason TEXT,
			accuracy DOUBLE PRECISION,
			sensitivity DOUBLE PRECISION,
			specificity DOUBLE PRECISION,
			f1 DOUBLE PRECISION,
			auc DOUBLE PRECISION,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, configuration_index, dimensionality_index, fold)
		)`,
	},
	{
		version: "003",
		name:    "create indexes",
		sql: `
		CREATE INDEX IF NOT EXISTS idx_lopo_runs_fingerprint ON lopo_runs(fingerprint);
		CREATE INDEX IF NOT EXISTS idx_lopo_runs_started_at ON lopo_runs(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_lopo_entries_cell ON lopo_entries(run_id, configuration, dimensionality)`,
	},
}
