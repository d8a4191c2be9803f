// Package cmd contains the CLI entry points for the ratings pipeline.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratings-pipeline",
		Short: "Scrapes, reconciles, and serves basketball player ratings.",
		Long: `ratings-pipeline ingests player ratings from the source site,
reconciles them into a canonical per-category dataset, and serves the
result over an authenticated HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newCleanupCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
