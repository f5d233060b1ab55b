package ports

import (
	"context"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/domain/run"
)

// RunReader provides read-only access to stored runs for the CLI and the API.
type RunReader interface {
	ListRuns(ctx context.Context, filters RunFilters) ([]run.Summary, error)
	GetRun(ctx context.Context, runID core.RunID) (*run.Manifest, *evaluation.Aggregate, error)
}

// RunFilters for querying runs. Listings are newest first.
type RunFilters struct {
	Fingerprint core.Hash
	Limit       int
	Offset      int
}
