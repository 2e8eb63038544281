package fix

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkoski/flowdeps/internal/app"
	"github.com/jkoski/flowdeps/internal/conf"
	"github.com/jkoski/flowdeps/internal/resolver"
)

// Command creates the fix subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var strategyName string

	cmd := &cobra.Command{
		Use:   "fix [workflow]",
		Short: "Settle ambiguous and unresolved workflow dependencies",
		Long:  "Re-resolve a workflow and run the chosen strategy over whatever stayed ambiguous or unresolved. Choices are persisted and trusted on later runs.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			nodeStrategy, modelStrategy, err := buildStrategy(cmd, strategyName)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			result, err := a.ResolveWorkflowFile(ctx, args[0])
			if err != nil {
				return err
			}

			fixed, err := a.Orchestrator().FixResolution(ctx, result, nodeStrategy, modelStrategy)
			if err != nil {
				return err
			}
			modelStrategy.ShowSummary(fixed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "interactive", "Resolution strategy: interactive, auto, silent")
	return cmd
}

func buildStrategy(cmd *cobra.Command, name string) (resolver.NodeResolutionStrategy, resolver.ModelResolutionStrategy, error) {
	switch name {
	case "interactive":
		s := &resolver.InteractiveStrategy{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
		return s, s, nil
	case "auto":
		s := &resolver.AutoStrategy{}
		return s, s, nil
	case "silent":
		s := resolver.SilentStrategy{}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown strategy: %s", name)
	}
}
