package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"golopo/adapters/excel"
	"golopo/adapters/filesink"
	"golopo/app"
	"golopo/domain/core"
	"golopo/internal/classify"
	"golopo/internal/config"
	"golopo/internal/profiling"
	"golopo/internal/report"
	"golopo/internal/testkit"
	"golopo/ports"

	"github.com/spf13/cobra"
)

func newFoldsCmd() *cobra.Command {
	var opts overrides

	cmd := &cobra.Command{
		Use:   "folds",
		Short: "Print the fold plan of a cohort without evaluating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cohortConfig := excel.DefaultCohortConfig(cfg.Paths.CohortDir)
			cohortConfig.LabelColumn = cfg.Paths.LabelColumn

			plans, err := app.PlanFolds(cmd.Context(), excel.NewCohortSource(cohortConfig, nil))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d folds\n", len(plans))
			for _, p := range plans {
				fmt.Fprintf(out, "fold %d: hold out %s (%d rows), train on %d rows of [%s]\n",
					p.Index, p.HeldOut, p.TestRows, p.TrainRows, strings.Join(p.Training, ", "))
			}
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func newProfileCmd() *cobra.Command {
	var opts overrides

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print class balance per patient and pooled feature distributions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			grid, err := config.LoadGrid(cfg.Paths.GridFile)
			if err != nil {
				return err
			}
			cohortConfig := excel.DefaultCohortConfig(cfg.Paths.CohortDir)
			cohortConfig.LabelColumn = cfg.Paths.LabelColumn
			store, err := excel.NewCohortSource(cohortConfig, nil).Load(cmd.Context())
			if err != nil {
				return err
			}
			profile, err := profiling.NewProfiler(grid.Labels).Profile(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d patients, %d rows (%d negative, %d positive)\n",
				len(profile.Patients), profile.Rows, profile.Negatives, profile.Positives)
			fmt.Fprintln(out, patientTable(profile.Patients))
			fmt.Fprintln(out, featureTable(profile.Features))
			for _, w := range profile.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.gridFile, "grid", "", "YAML grid file supplying the label pair (env GRID_FILE)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var resultsDir, outDir string

	cmd := &cobra.Command{
		Use:   "report [run.json]",
		Short: "Summarize a stored run",
		Long: `Summarize a stored JSON run. Without an argument the most recent run in
--results is used. With --out the Markdown and HTML reports are written there.

Example: lopo report ./results/0190c1e2-....json --out ./reports`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				stored *filesink.StoredRun
				err    error
			)
			if len(args) == 1 {
				stored, err = filesink.Read(args[0])
			} else {
				stored, err = filesink.NewJSONSink(resultsDir).Latest()
			}
			if err != nil {
				return err
			}

			cells, err := report.Summarize(stored.Aggregate)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (code %s, fingerprint %s)\n",
				stored.Manifest.RunID, stored.Manifest.CodeVersion, stored.Manifest.Fingerprint.Fingerprint)
			fmt.Fprintln(out, cellTable(cells))

			if outDir == "" {
				return nil
			}
			paths, err := app.WriteReport(outDir, stored.Manifest, stored.Aggregate)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(out, "Report: %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&resultsDir, "results", config.FromEnv().Paths.ResultsDir, "Directory of stored runs")
	cmd.Flags().StringVar(&outDir, "out", "", "Write report.md and report.html into this directory")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var resultsDir, fingerprint string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := filesink.NewJSONSink(resultsDir).ListRuns(cmd.Context(), ports.RunFilters{
				Fingerprint: core.Hash(fingerprint),
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "No stored runs in %s\n", resultsDir)
				return nil
			}
			fmt.Fprintln(out, runTable(runs))
			return nil
		},
	}
	cmd.Flags().StringVar(&resultsDir, "results", config.FromEnv().Paths.ResultsDir, "Directory of stored runs")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Only runs with this determinism fingerprint")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs, 0 for all")
	return cmd
}

func newSynthCmd() *cobra.Command {
	gen := testkit.DefaultCohortConfig()
	var outDir, format, labelColumn string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a seeded synthetic cohort, one table per patient",
		Long: `Generate per-voxel enhancement curves with ROI (255) and background (0)
labels, one table per patient, in the layout "lopo run" reads.

Example: lopo synth --out ./data/cohort --patients 6 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := testkit.NewCohortGenerator(gen)
			if err != nil {
				return err
			}
			patients, err := g.Patients()
			if err != nil {
				return err
			}
			paths, err := excel.WritePatients(outDir, format, labelColumn, patients)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d patients (%d rows x %d features each) to %s\n",
				len(paths), gen.Voxels, gen.Timepoints, filepath.Clean(outDir))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "./data/cohort", "Output directory")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&labelColumn, "label-column", "label", "Name of the label column")
	cmd.Flags().IntVar(&gen.Patients, "patients", gen.Patients, "Number of patients")
	cmd.Flags().IntVar(&gen.Voxels, "voxels", gen.Voxels, "Rows per patient")
	cmd.Flags().IntVar(&gen.Timepoints, "timepoints", gen.Timepoints, "Features per row")
	cmd.Flags().Float64Var(&gen.ROIFraction, "roi-fraction", gen.ROIFraction, "Share of ROI rows")
	cmd.Flags().Float64Var(&gen.Noise, "noise", gen.Noise, "Noise standard deviation")
	cmd.Flags().Uint64Var(&gen.Seed, "seed", gen.Seed, "Random seed")
	return cmd
}

func newGridCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grid",
		Short: "Print the default grid as YAML, a starting point for GRID_FILE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.MarshalGrid(config.DefaultGrid())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newFamiliesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the classifier families and their knobs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), familyTable(classify.Describe()))
		},
	}
}
