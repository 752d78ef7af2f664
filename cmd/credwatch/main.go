package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credwatch/cmd/credwatch/commands"
	"github.com/systmms/credwatch/internal/config"
	"github.com/systmms/credwatch/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "credwatch",
		Short: "Credential rotation watcher for streaming clients",
		Long: `credwatch loads streaming credentials from a secret store, keeps a
snapshot of their current values, and watches the store for rotation so the
consuming process can restart its streaming client with fresh credentials.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			// Update config with parsed values
			cfg.Path = configFile
			cfg.Logger = logger
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "credwatch.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Non-interactive mode")

	// Add commands
	rootCmd.AddCommand(
		commands.NewRunCommand(cfg),
		commands.NewGetCommand(cfg),
		commands.NewStoresCommand(cfg),
		commands.NewDoctorCommand(cfg),
	)

	return rootCmd.Execute()
}
