package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"redteam/internal/perspectives"
)

func PerspectivesCmd() *cobra.Command {
	var withModels bool
	cmd := &cobra.Command{
		Use:   "perspectives",
		Short: "List analysis perspectives and mental models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			catalog, err := perspectives.Load(cfg.Analysis.CatalogPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range catalog.Perspectives() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", p.ID, p.Name, p.Description)
			}
			if withModels {
				fmt.Fprintln(out)
				for _, m := range catalog.AllMentalModels() {
					fmt.Fprintf(out, "%s\t%s\n", m.ID, m.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withModels, "mental-models", false, "also list mental models")
	return cmd
}
