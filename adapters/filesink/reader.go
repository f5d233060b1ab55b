package filesink

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golopo/domain/core"
	"golopo/domain/evaluation"
	"golopo/domain/run"
	"golopo/internal/errors"
	"golopo/ports"

	"github.com/tidwall/gjson"
)

// summaryPaths are the manifest fields a listing needs. They are read with
// gjson so listing a results directory never decodes the aggregates.
var summaryPaths = []string{
	"manifest.run_id",
	"manifest.fingerprint.fingerprint",
	"manifest.code_version",
	"manifest.grid.on_projection_error",
	"manifest.grid.configurations.#",
	"manifest.grid.dimensionalities.#",
	"manifest.patients.#",
	"manifest.started_at",
	"manifest.finished_at",
}

// ListRuns summarizes the stored runs, newest first.
func (s *JSONSink) ListRuns(ctx context.Context, filters ports.RunFilters) ([]run.Summary, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}

	out := make([]run.Summary, 0, len(files))
	for i := len(files) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary, err := readSummary(files[i])
		if err != nil {
			return nil, err
		}
		if filters.Fingerprint != "" && summary.Fingerprint != filters.Fingerprint.String() {
			continue
		}
		out = append(out, summary)
	}

	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return []run.Summary{}, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(out) {
		out = out[:filters.Limit]
	}
	return out, nil
}

// GetRun loads <dir>/<run_id>.json.
func (s *JSONSink) GetRun(ctx context.Context, runID core.RunID) (*run.Manifest, *evaluation.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	id := runID.String()
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return nil, nil, errors.New(errors.CodeValidationError, "invalid run id "+id)
	}
	path := filepath.Join(s.dir, id+".json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil, errors.NotFound("run " + id)
	}
	stored, err := Read(path)
	if err != nil {
		return nil, nil, err
	}
	return stored.Manifest, stored.Aggregate, nil
}

func readSummary(path string) (run.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return run.Summary{}, errors.Wrapf(err, "failed to read %s", path)
	}
	if !gjson.ValidBytes(data) {
		return run.Summary{}, errors.New(errors.CodeValidationError, path+" is not valid JSON")
	}

	fields := gjson.GetManyBytes(data, summaryPaths...)
	if !fields[0].Exists() {
		return run.Summary{}, errors.New(errors.CodeValidationError, path+" is not a stored run")
	}
	policy := evaluation.ProjectionPolicy(fields[3].String())
	if policy == "" {
		policy = evaluation.PolicyAbort
	}
	return run.Summary{
		RunID:            fields[0].String(),
		Fingerprint:      fields[1].String(),
		CodeVersion:      fields[2].String(),
		Policy:           string(policy),
		Configurations:   int(fields[4].Int()),
		Dimensionalities: int(fields[5].Int()),
		Patients:         int(fields[6].Int()),
		StartedAt:        parseTime(fields[7]),
		FinishedAt:       parseTime(fields[8]),
	}, nil
}

func parseTime(r gjson.Result) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.String())
	if err != nil {
		return time.Time{}
	}
	return t
}
