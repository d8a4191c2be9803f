package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hoopindex/ratings-pipeline/internal/app"
	"github.com/hoopindex/ratings-pipeline/internal/sched"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge request logs past the retention horizon, then exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			registry := sched.New(a.Logs, a.Clock, a.Logger, a.Cfg.Retention)
			purged, err := registry.RunCleanup(cmd.Context())
			if err != nil {
				return err
			}
			a.Logger.Info("cleanup finished", zap.Int("purged", purged))
			return nil
		},
	}
}
