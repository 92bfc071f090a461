// Command gated runs the campus gate backend.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"campus-gate-backend/config"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "gated",
		Short:         "Campus gate vehicle tracking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml" // Default path for local development
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultPath, "path to the YAML configuration")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

func loadConfig(logger *log.Logger, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	logger.Printf("configuration loaded successfully from %s", path)
	return cfg, nil
}
