package migration

import (
	"context"
	"strings"
	"testing"

	"golopo/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_StepsAreIdempotent(t *testing.T) {
	r := NewRunner()
	assert.Equal(t, "1.0.0", r.Version())
	assert.Equal(t, []string{"create lopo_runs table", "create lopo_entries table", "create indexes"}, r.Steps())

	for _, s := range steps {
		for _, stmt := range strings.Split(s.sql, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			assert.Contains(t, stmt, "IF NOT EXISTS", "%s: %s", s.name, stmt)
		}
	}
}

func TestRunner_RunsTablesBeforeIndexes(t *testing.T) {
	var _ Migrator = NewRunner()
	assert.True(t, strings.Contains(steps[0].sql, "lopo_runs"))
	assert.True(t, strings.Contains(steps[1].sql, "REFERENCES lopo_runs"))
}

func TestSteps_VersionsAscendAndChecksumsDiffer(t *testing.T) {
	seen := map[string]bool{}
	for i, s := range steps {
		if i > 0 {
			assert.Less(t, steps[i-1].version, s.version)
		}
		sum := s.checksum()
		assert.Len(t, sum, 64)
		assert.False(t, seen[sum], "duplicate checksum for %s", s.version)
		seen[sum] = true
	}
}

func TestRunner_AppliesOnSQLite(t *testing.T) {
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	r := NewRunner()

	before, err := r.Status(ctx, db)
	require.NoError(t, err)
	require.Len(t, before, len(steps))
	for _, s := range before {
		assert.False(t, s.Applied, s.Version)
	}

	require.NoError(t, r.Run(ctx, db))
	require.NoError(t, r.Run(ctx, db), "a second run has nothing to apply")

	after, err := r.Status(ctx, db)
	require.NoError(t, err)
	for _, s := range after {
		assert.True(t, s.Applied, s.Version)
		assert.False(t, s.Drifted, s.Version)
	}

	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, len(steps), n)
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM lopo_entries`))
	assert.Zero(t, n)
}

func TestRunner_StatusReportsDrift(t *testing.T) {
	db, err := Open("sqlite::memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	r := NewRunner()
	require.NoError(t, r.Run(ctx, db))

	_, err = db.ExecContext(ctx, `UPDATE schema_migrations SET checksum = 'edited' WHERE version = '002'`)
	require.NoError(t, err)

	statuses, err := r.Status(ctx, db)
	require.NoError(t, err)
	assert.False(t, statuses[0].Drifted)
	assert.True(t, statuses[1].Drifted)
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	for _, url := range []string{"mysql://localhost/lopo", "sqlite:", ""} {
		_, err := Open(url)
		require.Error(t, err, url)
		assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err), url)
	}
}
