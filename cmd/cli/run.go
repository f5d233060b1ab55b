package main

import (
	"context"
	"fmt"
	"io"

	"golopo/app"
	"golopo/internal"
	"golopo/internal/config"
	"golopo/internal/container"
	"golopo/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// overrides are flag values applied on top of the environment
type overrides struct {
	cohortDir   string
	labelColumn string
	gridFile    string
	resultsDir  string
	excelReport string
	logLevel    string
	logFormat   string
}

func (o *overrides) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.cohortDir, "cohort", "", "Cohort directory, one table per patient (env COHORT_DIR)")
	cmd.Flags().StringVar(&o.labelColumn, "label-column", "", "Name of the label column (env LABEL_COLUMN)")
}

func (o *overrides) registerRun(cmd *cobra.Command) {
	o.register(cmd)
	cmd.Flags().StringVar(&o.gridFile, "grid", "", "YAML grid file (env GRID_FILE, default grid when unset)")
	cmd.Flags().StringVar(&o.resultsDir, "results", "", "Directory for JSON results and reports (env RESULTS_DIR)")
	cmd.Flags().StringVar(&o.excelReport, "excel", "", "Also write an .xlsx workbook here (env EXCEL_REPORT)")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (env LOG_LEVEL)")
	cmd.Flags().StringVar(&o.logFormat, "log-format", "", "json or console (env LOG_FORMAT)")
}

// load reads the environment, applies non-empty flags and validates
func (o *overrides) load() (*config.Config, error) {
	cfg := config.FromEnv()
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Paths.CohortDir, o.cohortDir)
	set(&cfg.Paths.LabelColumn, o.labelColumn)
	set(&cfg.Paths.GridFile, o.gridFile)
	set(&cfg.Paths.ResultsDir, o.resultsDir)
	set(&cfg.Paths.ExcelReport, o.excelReport)
	set(&cfg.Logging.Level, o.logLevel)
	set(&cfg.Logging.Format, o.logFormat)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	var opts overrides
	var noReport bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the grid over the cohort and store the aggregate",
		Long: `Run every (configuration, dimensionality) cell of the grid across all
leave-one-patient-out folds. The aggregate is written to RESULTS_DIR as JSON,
and optionally to an Excel workbook and PostgreSQL (DATABASE_URL).

Example: lopo run --cohort ./data/cohort --grid grid.yaml --results ./results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runEvaluation(cmd.Context(), cmd.OutOrStdout(), cfg, !noReport)
		},
	}
	opts.registerRun(cmd)
	cmd.Flags().BoolVar(&noReport, "no-report", false, "Skip the Markdown and HTML report")
	return cmd
}

func runEvaluation(ctx context.Context, out io.Writer, cfg *config.Config, writeReport bool) error {
	logger, err := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format)
	if err != nil {
		return err
	}

	c, err := container.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	if cfg.Database.Enabled() {
		db, err := container.OpenDatabase(cfg.Database)
		if err != nil {
			return err
		}
		if err := c.InitWithDatabase(ctx, db); err != nil {
			db.Close()
			return err
		}
	}

	grid, err := c.Grid()
	if err != nil {
		return err
	}

	c.StartMetrics()
	result, runErr := c.EvaluationService().Run(ctx, app.EvaluationRequest{Grid: grid})
	if result == nil {
		return runErr
	}

	fmt.Fprintf(out, "Run %s: %d patients, %d entries (%d skipped) in %dms\n",
		result.Manifest.RunID, len(result.Manifest.Patients), result.Aggregate.Count(),
		result.Aggregate.CountStatus("skipped"), result.RuntimeMs)
	fmt.Fprintln(out, cellTable(result.Cells))
	if best, ok := report.Best(result.Cells); ok {
		fmt.Fprintf(out, "Best cell: %s at %d components (mean AUC %.3f)\n",
			best.Configuration, best.Dimensionality, best.MeanAUC)
	}
	fmt.Fprintf(out, "Persisted to: %v\n", result.Persisted)

	if writeReport {
		paths, err := app.WriteReport(cfg.Paths.ResultsDir, result.Manifest, result.Aggregate)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(out, "Report: %s\n", p)
		}
	}
	if runErr != nil {
		logger.Error("run stored with sink failures", zap.Error(runErr))
	}
	return runErr
}
