package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jkoski/flowdeps/cmd/fix"
	"github.com/jkoski/flowdeps/cmd/resolve"
	"github.com/jkoski/flowdeps/cmd/scan"
	"github.com/jkoski/flowdeps/cmd/stats"
	"github.com/jkoski/flowdeps/internal/conf"
	"github.com/jkoski/flowdeps/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowdeps",
		Short: "Workflow dependency resolver CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		scan.Command(settings),
		resolve.Command(settings),
		fix.Command(settings),
		stats.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Init()
		level, err := parseLevel(settings.Log.Level)
		if err != nil {
			return err
		}
		logging.SetLevel(level)

		if settings.Log.File != "" {
			fileLogger, closer, err := logging.NewFileLogger(settings.Log.File, "flowdeps", level, logging.Rotation{
				MaxSizeMB:  settings.Log.MaxSizeMB,
				MaxBackups: settings.Log.MaxBackups,
				MaxAgeDays: settings.Log.MaxAgeDays,
			})
			if err != nil {
				return fmt.Errorf("error opening log file: %w", err)
			}
			slog.SetDefault(fileLogger)
			cobra.OnFinalize(func() { _ = closer() })
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().StringVar(&settings.Index.Path, "index", viper.GetString("index.path"), "Path to the model index database")
	rootCmd.PersistentFlags().StringVar(&settings.Models.Root, "models", viper.GetString("models.root"), "Path to the models directory")
	rootCmd.PersistentFlags().StringVar(&settings.Manifest.Path, "manifest", viper.GetString("manifest.path"), "Path to the workflow manifest")
	rootCmd.PersistentFlags().StringVar(&settings.Log.Level, "log-level", viper.GetString("log.level"), "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&settings.Index.Debug, "debug", "d", viper.GetBool("index.debug"), "Enable verbose database logging")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return logging.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
