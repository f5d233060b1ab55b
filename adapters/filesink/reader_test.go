package filesink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golopo/domain/core"
	"golopo/domain/run"
	"golopo/internal/errors"
	"golopo/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func persistRuns(t *testing.T, sink *JSONSink, ids ...string) []*run.Manifest {
	t.Helper()
	out := make([]*run.Manifest, 0, len(ids))
	for _, id := range ids {
		manifest, agg := fixture()
		manifest.RunID = core.RunID(id)
		require.NoError(t, sink.Persist(context.Background(), manifest, agg))
		out = append(out, manifest)
	}
	return out
}

func runIDs(summaries []run.Summary) []string {
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.RunID
	}
	return ids
}

func TestJSONSink_ListRuns(t *testing.T) {
	sink := NewJSONSink(t.TempDir())
	manifests := persistRuns(t, sink, "run-a", "run-b", "run-c")
	ctx := context.Background()

	all, err := sink.ListRuns(ctx, ports.RunFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-c", "run-b", "run-a"}, runIDs(all))

	first := all[2]
	assert.Equal(t, "abort", first.Policy)
	assert.Equal(t, 1, first.Configurations)
	assert.Equal(t, 1, first.Dimensionalities)
	assert.Equal(t, 2, first.Patients)
	assert.Equal(t, "test", first.CodeVersion)
	assert.Equal(t, manifests[0].Fingerprint.Fingerprint.String(), first.Fingerprint)
	assert.WithinDuration(t, manifests[0].StartedAt.Time(), first.StartedAt, time.Millisecond)

	page, err := sink.ListRuns(ctx, ports.RunFilters{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b"}, runIDs(page))

	past, err := sink.ListRuns(ctx, ports.RunFilters{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestJSONSink_ListRunsByFingerprint(t *testing.T) {
	sink := NewJSONSink(t.TempDir())
	persistRuns(t, sink, "run-a")

	manifest, agg := fixture()
	manifest.RunID = "run-b"
	manifest.CodeVersion = "other"
	manifest.Fingerprint = run.NewFingerprint(manifest.CohortHash, manifest.GridHash, manifest.CodeVersion)
	require.NoError(t, sink.Persist(context.Background(), manifest, agg))

	got, err := sink.ListRuns(context.Background(), ports.RunFilters{Fingerprint: manifest.Fingerprint.Fingerprint})
	require.NoError(t, err)
	assert.Equal(t, []string{"run-b"}, runIDs(got))
}

func TestJSONSink_ListRunsRejectsForeignDocuments(t *testing.T) {
	dir := t.TempDir()
	sink := NewJSONSink(dir)
	persistRuns(t, sink, "run-a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{"hello": "world"}`), 0o644))

	_, err := sink.ListRuns(context.Background(), ports.RunFilters{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}

func TestJSONSink_GetRun(t *testing.T) {
	sink := NewJSONSink(t.TempDir())
	manifest, agg := fixture()
	require.NoError(t, sink.Persist(context.Background(), manifest, agg))
	ctx := context.Background()

	gotManifest, gotAgg, err := sink.GetRun(ctx, manifest.RunID)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunID, gotManifest.RunID)
	assert.Equal(t, agg, gotAgg)

	_, _, err = sink.GetRun(ctx, core.NewRunID())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, _, err = sink.GetRun(ctx, "../escape")
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}
