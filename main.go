package main

import (
	"fmt"
	"os"

	"github.com/jkoski/flowdeps/cmd"
	"github.com/jkoski/flowdeps/internal/conf"
	"github.com/jkoski/flowdeps/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		if log := logging.HumanReadable(); log != nil {
			log.Error("command failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		}
		os.Exit(1)
	}
}
