package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golopo/domain/cohort"

	"github.com/xuri/excelize/v2"
)

// FeatureHeader names feature column j of a written table.
func FeatureHeader(j int) string { return fmt.Sprintf("t%02d", j) }

// WritePatients writes one table per patient into dir, as "csv" or "xlsx",
// in the layout CohortSource reads back.
func WritePatients(dir, format, labelColumn string, patients []cohort.Patient) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	paths := make([]string, 0, len(patients))
	for _, p := range patients {
		rows := patientRows(p, labelColumn)
		path := filepath.Join(dir, p.ID().String()+"."+format)
		var err error
		switch format {
		case "csv":
			err = writeCSV(path, rows)
		case "xlsx":
			err = writeXLSX(path, rows)
		default:
			return nil, fmt.Errorf("unsupported file type: %s", format)
		}
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func patientRows(p cohort.Patient, labelColumn string) [][]string {
	header := make([]string, 0, p.Cols()+1)
	for j := 0; j < p.Cols(); j++ {
		header = append(header, FeatureHeader(j))
	}
	header = append(header, labelColumn)

	rows := [][]string{header}
	for i := 0; i < p.Rows(); i++ {
		row := make([]string, 0, p.Cols()+1)
		for _, v := range p.Row(i) {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row, strconv.FormatFloat(p.Label(i), 'g', -1, 64))
		rows = append(rows, row)
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			if i > 0 {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					values[j] = n
					continue
				}
			}
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, path, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
