package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lopo",
		Short:         "Leave-one-patient-out evaluation of kernel-projected classifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newFoldsCmd(),
		newProfileCmd(),
		newReportCmd(),
		newRunsCmd(),
		newSynthCmd(),
		newGridCmd(),
		newFamiliesCmd(),
	)
	return rootCmd
}
