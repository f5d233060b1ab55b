package main

import (
	"fmt"
	"strconv"

	"golopo/domain/run"
	"golopo/internal/classify"
	"golopo/internal/profiling"
	"golopo/internal/report"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
}

func cellTable(cells []report.CellSummary) string {
	t := newTable("configuration", "dim", "folds", "skipped", "clamped", "mean AUC", "std AUC", "accuracy", "F1")
	for _, c := range cells {
		auc, std := "n/a", "n/a"
		if c.AUCFolds > 0 {
			auc, std = fmt.Sprintf("%.3f", c.MeanAUC), fmt.Sprintf("%.3f", c.StdAUC)
		}
		t.Row(
			c.Configuration,
			strconv.Itoa(c.Dimensionality),
			strconv.Itoa(c.Folds),
			strconv.Itoa(c.Skipped),
			strconv.Itoa(c.Clamped),
			auc,
			std,
			fmt.Sprintf("%.3f", c.MeanAccuracy),
			fmt.Sprintf("%.3f", c.MeanF1),
		)
	}
	return t.String()
}

func familyTable(families []classify.FamilyInfo) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("family", "knobs", "description").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, f := range families {
		knobs := "-"
		if len(f.Knobs) > 0 {
			knobs = fmt.Sprint(f.Knobs)
		}
		t.Row(f.Name, knobs, f.Description)
	}
	return t.String()
}

func patientTable(patients []profiling.PatientSummary) string {
	t := newTable("patient", "rows", "negative", "positive", "unknown")
	for _, p := range patients {
		t.Row(p.Patient, strconv.Itoa(p.Rows), strconv.Itoa(p.Negatives), strconv.Itoa(p.Positives), strconv.Itoa(p.Unknown))
	}
	return t.String()
}

func featureTable(features []profiling.FeatureSummary) string {
	t := newTable("feature", "mean", "std", "min", "median", "max", "skew", "outliers")
	for _, f := range features {
		t.Row(
			strconv.Itoa(f.Index),
			fmt.Sprintf("%.3g", f.Mean),
			fmt.Sprintf("%.3g", f.StdDev),
			fmt.Sprintf("%.3g", f.Min),
			fmt.Sprintf("%.3g", f.Median),
			fmt.Sprintf("%.3g", f.Max),
			fmt.Sprintf("%.2f", f.Skewness),
			strconv.Itoa(f.Outliers),
		)
	}
	return t.String()
}

func runTable(runs []run.Summary) string {
	t := newTable("run", "started", "policy", "configs", "dims", "patients", "code", "fingerprint")
	for _, r := range runs {
		fp := r.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		t.Row(
			r.RunID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Policy,
			strconv.Itoa(r.Configurations),
			strconv.Itoa(r.Dimensionalities),
			strconv.Itoa(r.Patients),
			r.CodeVersion,
			fp,
		)
	}
	return t.String()
}
