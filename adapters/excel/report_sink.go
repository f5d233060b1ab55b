package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golopo/domain/evaluation"
	"golopo/domain/run"
	"golopo/internal/errors"
	"golopo/internal/report"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary  = "Summary"
	sheetEntries  = "Entries"
	sheetManifest = "Manifest"
)

// WorkbookSink writes a run as an .xlsx workbook with summary, per-fold and
// manifest sheets.
type WorkbookSink struct {
	path string
}

// NewWorkbookSink writes to path. An existing file is replaced.
func NewWorkbookSink(path string) *WorkbookSink {
	return &WorkbookSink{path: path}
}

func (s *WorkbookSink) Name() string { return "excel" }

// Persist builds the workbook in a temp file and renames it into place.
func (s *WorkbookSink) Persist(ctx context.Context, manifest *run.Manifest, agg *evaluation.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cells, err := report.Summarize(agg)
	if err != nil {
		return errors.SinkError(s.Name(), err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummary(f, cells); err != nil {
		return errors.SinkError(s.Name(), err)
	}
	if err := writeEntries(f, agg); err != nil {
		return errors.SinkError(s.Name(), err)
	}
	if err := writeManifest(f, manifest); err != nil {
		return errors.SinkError(s.Name(), err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return errors.SinkError(s.Name(), err)
	}
	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.SinkError(s.Name(), err)
	}
	tmp := s.path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		return errors.SinkError(s.Name(), err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.SinkError(s.Name(), err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, cells []report.CellSummary) error {
	rows := [][]interface{}{{
		"configuration", "dimensionality", "folds", "completed", "skipped", "clamped",
		"auc_folds", "mean_auc", "std_auc", "median_auc", "min_auc",
		"mean_accuracy", "mean_sensitivity", "mean_specificity", "mean_f1",
	}}
	for _, c := range cells {
		rows = append(rows, []interface{}{
			c.Configuration, c.Dimensionality, c.Folds, c.Completed, c.Skipped, c.Clamped,
			c.AUCFolds, c.MeanAUC, c.StdAUC, c.MedianAUC, c.MinAUC,
			c.MeanAccuracy, c.MeanSens, c.MeanSpec, c.MeanF1,
		})
	}
	return writeRows(f, sheetSummary, rows)
}

func writeEntries(f *excelize.File, agg *evaluation.Aggregate) error {
	rows := [][]interface{}{{
		"configuration", "dimensionality", "effective_dimensionality", "fold", "patient", "status", "reason",
		"tp", "fp", "tn", "fn", "accuracy", "sensitivity", "specificity", "precision", "f1", "auc",
		"train_rows", "test_rows", "duration_ms",
	}}
	for _, byDim := range agg.Entries {
		for _, byFold := range byDim {
			for _, e := range byFold {
				row := []interface{}{
					e.Configuration, e.Dimensionality, e.EffectiveDimensionality, e.Fold, e.Patient,
					string(e.Status), e.Reason,
				}
				if r := e.Result; r != nil {
					var auc interface{} = ""
					if r.AUCDefined {
						auc = r.AUC
					}
					row = append(row,
						r.Confusion.TruePositive, r.Confusion.FalsePositive, r.Confusion.TrueNegative, r.Confusion.FalseNegative,
						r.Accuracy, r.Sensitivity, r.Specificity, r.Precision, r.F1, auc,
						r.TrainRows, r.TestRows, e.DurationMs,
					)
				} else {
					row = append(row, "", "", "", "", "", "", "", "", "", "", "", "", e.DurationMs)
				}
				rows = append(rows, row)
			}
		}
	}
	return writeRows(f, sheetEntries, rows)
}

func writeManifest(f *excelize.File, m *run.Manifest) error {
	rows := [][]interface{}{{"key", "value"}}
	if m != nil {
		rows = append(rows,
			[]interface{}{"run_id", m.RunID.String()},
			[]interface{}{"cohort_hash", m.CohortHash.String()},
			[]interface{}{"grid_hash", m.GridHash.String()},
			[]interface{}{"fingerprint", m.Fingerprint.Fingerprint.String()},
			[]interface{}{"code_version", m.CodeVersion},
			[]interface{}{"started_at", m.StartedAt.String()},
			[]interface{}{"finished_at", m.FinishedAt.String()},
			[]interface{}{"kernel", m.Grid.Kernel.Name},
			[]interface{}{"policy", string(m.Grid.Policy())},
		)
		for i, p := range m.Patients {
			rows = append(rows, []interface{}{fmt.Sprintf("patient_%d", i), p})
		}
	}
	return writeRows(f, sheetManifest, rows)
}
