package ports

import (
	"context"

	"golopo/domain/evaluation"
	"golopo/domain/run"
)

// ResultSink receives the whole aggregate once the grid has completed. A sink
// either stores everything or returns an error.
type ResultSink interface {
	Name() string
	Persist(ctx context.Context, manifest *run.Manifest, aggregate *evaluation.Aggregate) error
}
