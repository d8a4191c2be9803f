package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/app"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the canonical player set to the configured blob store.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			exporter, err := a.BuildExporter()
			if err != nil {
				return err
			}
			uri, err := exporter.Export(cmd.Context())
			if err != nil {
				return err
			}
			a.Logger.Info("export finished", zap.String("uri", uri))
			return nil
		},
	}
}
