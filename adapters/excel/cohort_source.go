package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golopo/domain/cohort"
	"golopo/domain/core"
	"golopo/internal/errors"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var supportedExt = []string{".csv", ".xlsx"}

// CohortSource loads a cohort directory into a feature store. Patients are
// enumerated in file-name order, which fixes the fold order.
type CohortSource struct {
	config CohortConfig
	logger *zap.Logger
}

// NewCohortSource creates a source for config.Dir
func NewCohortSource(config CohortConfig, logger *zap.Logger) *CohortSource {
	if config.LabelColumn == "" {
		config.LabelColumn = "label"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortSource{config: config, logger: logger}
}

// Files lists the patient tables in enumeration order
func (s *CohortSource) Files() ([]string, error) {
	entries, err := os.ReadDir(s.config.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list cohort directory %s", s.config.Dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if slices.Contains(supportedExt, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(s.config.Dir, e.Name()))
		}
	}
	return files, nil
}

// Load reads every patient table and builds the store
func (s *CohortSource) Load(ctx context.Context) (*cohort.Store, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(core.ErrInsufficientPatients, "no .csv or .xlsx tables in %s", s.config.Dir)
	}

	var (
		patients []cohort.Patient
		features []string
	)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		patient, header, err := s.readPatient(path)
		if err != nil {
			return nil, err
		}
		if features == nil {
			features = header
		} else if !slices.Equal(features, header) {
			return nil, errors.Wrapf(core.ErrShapeMismatch, "%s columns %v differ from %v", path, header, features)
		}
		patients = append(patients, patient)
		s.logger.Debug("patient loaded",
			zap.String("patient", patient.ID().String()),
			zap.Int("rows", patient.Rows()),
			zap.Int("cols", patient.Cols()),
		)
	}

	store, err := cohort.NewStore(patients...)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cohort in %s", s.config.Dir)
	}
	s.logger.Info("cohort loaded",
		zap.String("dir", s.config.Dir),
		zap.Int("patients", store.Len()),
		zap.Int("rows", store.TotalRows()),
		zap.Int("features", store.Cols()),
	)
	return store, nil
}

func (s *CohortSource) readPatient(path string) (cohort.Patient, []string, error) {
	table, err := NewDataReader(path, s.config.Sheet).ReadTable()
	if err != nil {
		return cohort.Patient{}, nil, errors.Wrapf(err, "failed to read %s", path)
	}

	if len(table.Rows) == 0 {
		return cohort.Patient{}, nil, errors.Wrapf(core.ErrInvalidInput, "%s has no data rows", path)
	}
	labelCol := slices.Index(table.Headers, s.config.LabelColumn)
	if labelCol < 0 {
		return cohort.Patient{}, nil, errors.Wrapf(core.ErrInvalidInput, "%s has no %q column", path, s.config.LabelColumn)
	}
	header := make([]string, 0, len(table.Headers)-1)
	for i, h := range table.Headers {
		if i != labelCol {
			header = append(header, h)
		}
	}
	if len(header) == 0 {
		return cohort.Patient{}, nil, errors.Wrapf(core.ErrInvalidInput, "%s has no feature columns", path)
	}

	data := make([]float64, 0, len(table.Rows)*len(header))
	labels := make([]float64, len(table.Rows))
	for r, row := range table.Rows {
		for c, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return cohort.Patient{}, nil, errors.Wrapf(core.ErrInvalidInput,
					"%s row %d column %q: %q is not a number", path, r+2, table.Headers[c], cell)
			}
			if c == labelCol {
				labels[r] = v
			} else {
				data = append(data, v)
			}
		}
	}

	id, err := core.ParsePatientID(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return cohort.Patient{}, nil, err
	}
	patient, err := cohort.NewPatient(id, mat.NewDense(len(table.Rows), len(header), data), labels)
	if err != nil {
		return cohort.Patient{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return patient, header, nil
}
