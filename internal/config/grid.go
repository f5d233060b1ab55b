package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golopo/domain/evaluation"
	"golopo/internal/errors"

	"gopkg.in/yaml.v3"
)

// DefaultGrid reproduces the hand-authored grid of the original study: one
// 100-tree random forest with 48 workers across seven dimensionalities.
func DefaultGrid() evaluation.Grid {
	return evaluation.Grid{
		Configurations: []evaluation.Configuration{
			{Name: "random-forest-100", Family: "random-forest", Estimators: 100, Jobs: 48},
		},
		Dimensionalities: []int{2, 4, 8, 16, 24, 32, 36},
		Labels:           evaluation.LabelPair{Negative: 0, Positive: 255},
		Kernel:           evaluation.KernelSpec{Name: evaluation.KernelRBF},
		OnProjectionErr:  evaluation.PolicyAbort,
	}
}

// LoadGrid reads a YAML grid file. An empty path yields DefaultGrid.
func LoadGrid(path string) (evaluation.Grid, error) {
	if path == "" {
		return DefaultGrid(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return evaluation.Grid{}, errors.Wrapf(err, "failed to read grid file %s", path)
	}
	grid, err := ParseGrid(bytes.NewReader(data))
	if err != nil {
		return evaluation.Grid{}, errors.Wrapf(err, "invalid grid file %s", path)
	}
	return grid, nil
}

// ParseGrid decodes and validates a grid. Unknown keys are rejected; labels,
// kernel and policy keep their defaults when omitted.
func ParseGrid(r io.Reader) (evaluation.Grid, error) {
	defaults := DefaultGrid()
	grid := evaluation.Grid{
		Labels:          defaults.Labels,
		Kernel:          defaults.Kernel,
		OnProjectionErr: defaults.OnProjectionErr,
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&grid); err != nil {
		if err == io.EOF {
			return evaluation.Grid{}, errors.ConfigInvalid("grid file is empty")
		}
		return evaluation.Grid{}, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("decode grid: %w", err))
	}

	if err := validate.Struct(grid); err != nil {
		return evaluation.Grid{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if err := grid.Validate(); err != nil {
		return evaluation.Grid{}, err
	}
	return grid, nil
}

// MarshalGrid renders a grid as YAML, e.g. to seed a grid file.
func MarshalGrid(grid evaluation.Grid) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(grid); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
