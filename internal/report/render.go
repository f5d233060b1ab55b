package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"golopo/domain/evaluation"
	"golopo/domain/run"
)

// Markdown renders the manifest header, the per-cell table and the fold
// detail of every skipped or clamped entry.
func Markdown(manifest *run.Manifest, agg *evaluation.Aggregate) (string, error) {
	cells, err := Summarize(agg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# LOPO evaluation report\n\n")
	if manifest != nil {
		fmt.Fprintf(&b, "- Run: `%s`\n", manifest.RunID)
		fmt.Fprintf(&b, "- Patients: %d\n", len(manifest.Patients))
		fmt.Fprintf(&b, "- Kernel: %s\n", manifest.Grid.Kernel.Name)
		fmt.Fprintf(&b, "- Projection policy: %s\n", manifest.Grid.Policy())
		fmt.Fprintf(&b, "- Code version: %s\n", manifest.CodeVersion)
		fmt.Fprintf(&b, "- Fingerprint: `%s`\n", manifest.Fingerprint.Fingerprint)
		if !manifest.FinishedAt.IsZero() {
			fmt.Fprintf(&b, "- Duration: %s\n", manifest.FinishedAt.Sub(manifest.StartedAt))
		}
		b.WriteString("\n")
	}

	if best, ok := Best(cells); ok {
		fmt.Fprintf(&b, "Best cell: **%s** at %d dimensions, mean AUC %.3f over %d folds.\n\n",
			best.Configuration, best.Dimensionality, best.MeanAUC, best.AUCFolds)
	}

	b.WriteString("## Cells\n\n")
	b.WriteString("| Configuration | Dim | Completed | Skipped | Clamped | AUC mean | AUC std | AUC median | Accuracy | Sensitivity | Specificity | F1 |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, c := range cells {
		auc := "n/a"
		std := "n/a"
		median := "n/a"
		if c.AUCFolds > 0 {
			auc = fmt.Sprintf("%.3f", c.MeanAUC)
			std = fmt.Sprintf("%.3f", c.StdAUC)
			median = fmt.Sprintf("%.3f", c.MedianAUC)
		}
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %s | %s | %s | %.3f | %.3f | %.3f | %.3f |\n",
			c.Configuration, c.Dimensionality, c.Completed, c.Skipped, c.Clamped,
			auc, std, median, c.MeanAccuracy, c.MeanSens, c.MeanSpec, c.MeanF1)
	}

	var notes []string
	for _, byDim := range agg.Entries {
		for _, byFold := range byDim {
			for _, e := range byFold {
				switch {
				case e.Status == evaluation.StatusSkipped:
					notes = append(notes, fmt.Sprintf("- %s, dim %d, fold %d (%s): skipped, %s",
						e.Configuration, e.Dimensionality, e.Fold, e.Patient, e.Reason))
				case e.EffectiveDimensionality != e.Dimensionality:
					notes = append(notes, fmt.Sprintf("- %s, dim %d, fold %d (%s): clamped to %d",
						e.Configuration, e.Dimensionality, e.Fold, e.Patient, e.EffectiveDimensionality))
				}
			}
		}
	}
	if len(notes) > 0 {
		b.WriteString("\n## Fold notes\n\n")
		b.WriteString(strings.Join(notes, "\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// HTML converts report Markdown into a standalone page.
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "LOPO evaluation report",
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}
