package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hoopindex/ratings-pipeline/internal/app"
	"github.com/hoopindex/ratings-pipeline/internal/ratings"
)

func newIngestCmd() *cobra.Command {
	var categories []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Crawl the source and reconcile the canonical dataset.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			targets, err := parseCategories(categories)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			service, err := a.BuildIngest()
			if err != nil {
				return err
			}
			return service.Run(cmd.Context(), targets)
		},
	}

	cmd.Flags().StringSliceVar(&categories, "category", nil,
		"categories to ingest (current, classic, all-time); defaults to all")
	return cmd
}

func parseCategories(raw []string) ([]ratings.Category, error) {
	if len(raw) == 0 {
		return ratings.Categories(), nil
	}
	out := make([]ratings.Category, 0, len(raw))
	for _, r := range raw {
		category, err := ratings.ParseCategory(r)
		if err != nil {
			return nil, err
		}
		out = append(out, category)
	}
	return out, nil
}
