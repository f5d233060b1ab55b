package ports

import (
	"context"

	"golopo/domain/cohort"
)

// CohortSource loads every patient record before evaluation starts.
type CohortSource interface {
	Load(ctx context.Context) (*cohort.Store, error)
}
