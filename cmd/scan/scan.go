package scan

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkoski/flowdeps/internal/app"
	"github.com/jkoski/flowdeps/internal/conf"
)

// Command creates the scan subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Index model files under the models directory",
		Long:  "Walk the models directory, hash new or changed files, and prune locations whose files are gone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Scanned %d files: %d hashed, %d unchanged, %d removed, %d failed (%.1fs)\n",
				result.Scanned, result.Hashed, result.Skipped, result.Removed, result.Failed,
				result.Duration.Seconds())
			return nil
		},
	}

	cmd.Flags().IntVarP(&settings.Models.ScanWorkers, "workers", "w", settings.Models.ScanWorkers, "Number of concurrent hashing workers (0 = all CPUs)")
	return cmd
}
