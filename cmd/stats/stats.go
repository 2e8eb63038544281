package stats

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkoski/flowdeps/internal/app"
	"github.com/jkoski/flowdeps/internal/conf"
)

// Command creates the stats subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show model index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Store.GetStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index:     %s\n", settings.Index.Path)
			fmt.Fprintf(out, "Models:    %d\n", s.TotalModels)
			fmt.Fprintf(out, "Locations: %d\n", s.TotalLocations)
			fmt.Fprintf(out, "Catalog:   %d packs\n", a.Catalog.Len())
			fmt.Fprintf(out, "Registry:  %d node types\n", len(a.Registry.NodeTypes()))
			fmt.Fprintf(out, "Workflows: %d in manifest\n", len(a.Manifest.Workflows()))
			return nil
		},
	}
	return cmd
}
