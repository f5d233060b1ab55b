package postgres

import (
	"context"
	"os"
	"testing"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/domain/run"
	"golopo/internal/errors"
	"golopo/internal/migration"
	"golopo/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() (*run.Manifest, *evaluation.Aggregate) {
	grid := evaluation.Grid{
		Configurations:   []evaluation.Configuration{{Name: "lr", Family: "logistic-regression"}},
		Dimensionalities: []int{2},
		Labels:           evaluation.LabelPair{Negative: 0, Positive: 255},
		Kernel:           evaluation.KernelSpec{Name: evaluation.KernelRBF},
		OnProjectionErr:  evaluation.PolicySkip,
	}
	manifest := run.NewManifest(core.NewRunID(), grid, []core.PatientID{"a", "b"}, "cohort", "test")
	manifest.Finish()
	agg := &evaluation.Aggregate{
		Configurations:   []string{"lr"},
		Dimensionalities: []int{2},
		Patients:         []string{"a", "b"},
		Entries: [][][]evaluation.Entry{{{
			{Configuration: "lr", Dimensionality: 2, EffectiveDimensionality: 2, Fold: 0, Patient: "a",
				Status: evaluation.StatusCompleted, DurationMs: 12,
				Result: &evaluation.FoldResult{Accuracy: 0.75, F1: 0.5}},
			{Configuration: "lr", Dimensionality: 2, Fold: 1, Patient: "b",
				Status: evaluation.StatusSkipped, Reason: "rank"},
		}}},
	}
	return manifest, agg
}

func TestEntryRows(t *testing.T) {
	manifest, agg := sample()
	rows := entryRows(manifest.RunID, agg)
	require.Len(t, rows, 2)

	done := rows[0]
	assert.Equal(t, manifest.RunID.String(), done.RunID)
	assert.Equal(t, "completed", done.Status)
	assert.False(t, done.Reason.Valid)
	assert.True(t, done.Accuracy.Valid)
	assert.Equal(t, 0.75, done.Accuracy.Float64)
	assert.False(t, done.AUC.Valid, "undefined AUC is stored as NULL")
	assert.Equal(t, int64(12), done.DurationMs)

	skipped := rows[1]
	assert.Equal(t, 1, skipped.Fold)
	assert.Equal(t, "skipped", skipped.Status)
	assert.Equal(t, "rank", skipped.Reason.String)
	assert.False(t, skipped.Accuracy.Valid)
}

// TestRunRepository_RoundTrip needs a scratch database, e.g.
// LOPO_TEST_DATABASE_URL=postgres://localhost/lopo_test?sslmode=disable
func TestRunRepository_RoundTrip(t *testing.T) {
	url := os.Getenv("LOPO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LOPO_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, migration.NewRunner().Run(ctx, db))

	repo := NewRunRepository(db)
	manifest, agg := sample()
	require.NoError(t, repo.Persist(ctx, manifest, agg))

	gotManifest, gotAgg, err := repo.GetRun(ctx, manifest.RunID)
	require.NoError(t, err)
	assert.Equal(t, manifest.Fingerprint, gotManifest.Fingerprint)
	assert.Equal(t, agg, gotAgg)

	ids, err := repo.FindByFingerprint(ctx, manifest.Fingerprint.Fingerprint)
	require.NoError(t, err)
	assert.Contains(t, ids, manifest.RunID.String())

	runs, err := repo.ListRuns(ctx, ports.RunFilters{Fingerprint: manifest.Fingerprint.Fingerprint, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, manifest.Summarize().RunID, runs[0].RunID)
	assert.Equal(t, "skip", runs[0].Policy)

	_, _, err = repo.GetRun(ctx, core.NewRunID())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	// A second insert of the same run fails and leaves no partial entries.
	assert.Error(t, repo.Persist(ctx, manifest, agg))
	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM lopo_entries WHERE run_id = $1`, manifest.RunID.String()))
	assert.Equal(t, 2, n)
}
