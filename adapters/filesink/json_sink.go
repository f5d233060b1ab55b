// Package filesink stores completed runs as JSON documents on disk.
package filesink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golopo/domain/evaluation"
	"golopo/domain/run"
	"golopo/internal/errors"
)

// StoredRun is the on-disk document: the manifest plus the full aggregate.
type StoredRun struct {
	Manifest  *run.Manifest         `json:"manifest"`
	Aggregate *evaluation.Aggregate `json:"aggregate"`
}

// JSONSink writes one <run_id>.json file per run into dir.
type JSONSink struct {
	dir string
}

// NewJSONSink creates a sink rooted at dir. The directory is created on first use.
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{dir: dir}
}

func (s *JSONSink) Name() string { return "json" }

// Path returns where the run with the given manifest is stored
func (s *JSONSink) Path(manifest *run.Manifest) string {
	return filepath.Join(s.dir, manifest.RunID.String()+".json")
}

// Persist writes the document to a temp file in the same directory and
// renames it, so readers never see a partial run.
func (s *JSONSink) Persist(ctx context.Context, manifest *run.Manifest, agg *evaluation.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if manifest == nil || agg == nil {
		return errors.SinkError(s.Name(), fmt.Errorf("manifest and aggregate are required"))
	}
	if err := agg.Verify(); err != nil {
		return errors.SinkError(s.Name(), err)
	}

	data, err := json.MarshalIndent(StoredRun{Manifest: manifest, Aggregate: agg}, "", "  ")
	if err != nil {
		return errors.SinkError(s.Name(), err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.SinkError(s.Name(), err)
	}

	tmp, err := os.CreateTemp(s.dir, ".run-*.json")
	if err != nil {
		return errors.SinkError(s.Name(), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.SinkError(s.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.SinkError(s.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.SinkError(s.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.Path(manifest)); err != nil {
		os.Remove(tmp.Name())
		return errors.SinkError(s.Name(), err)
	}
	return nil
}

// List returns the stored run files in dir, oldest run id first.
func (s *JSONSink) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to list %s", s.dir)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		out = append(out, filepath.Join(s.dir, name))
	}
	// Run ids are UUIDv7, so lexical order is creation order.
	sort.Strings(out)
	return out, nil
}

// Latest loads the most recent stored run.
func (s *JSONSink) Latest() (*StoredRun, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NotFound("stored run in " + s.dir)
	}
	return Read(files[len(files)-1])
}

// Read loads a stored run and checks its integrity.
func Read(path string) (*StoredRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var stored StoredRun
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	if stored.Manifest == nil || stored.Aggregate == nil {
		return nil, errors.New(errors.CodeValidationError, path+" is not a stored run")
	}
	if err := stored.Aggregate.Verify(); err != nil {
		return nil, errors.Wrapf(err, "stored run %s", path)
	}
	if err := stored.Manifest.VerifyFingerprint(); err != nil {
		return nil, errors.Wrapf(err, "stored run %s", path)
	}
	return &stored, nil
}
