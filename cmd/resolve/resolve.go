package resolve

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkoski/flowdeps/internal/app"
	"github.com/jkoski/flowdeps/internal/conf"
	"github.com/jkoski/flowdeps/internal/resolver"
)

// Command creates the resolve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [workflow]",
		Short: "Resolve a workflow's node packs and model references",
		Long:  "Parse a workflow file, resolve its node types and model references against the index, catalog and registry, and record what resolved cleanly. Ambiguous and unresolved entries are reported; use fix to settle them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			result, err := a.ResolveWorkflowFile(ctx, args[0])
			if err != nil {
				return err
			}

			if err := a.Orchestrator().ApplyResolution(ctx, result); err != nil {
				return err
			}

			summary := &resolver.InteractiveStrategy{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
			summary.ShowSummary(result)

			open := len(result.AmbiguousModels())
			for i := range result.Nodes {
				if result.Nodes[i].MatchType == resolver.MatchUnresolved {
					open++
				}
			}
			if open > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d entries need attention; run: flowdeps fix %s\n", open, args[0])
			}
			return nil
		},
	}
	return cmd
}
