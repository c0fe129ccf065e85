package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/feedstore/config"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a feedstore configuration file without opening the database.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  feedstore validate -c feedstore.yaml
  feedstore validate --config /etc/feedstore/config.yaml --env-file /etc/feedstore/.env`,
		RunE: runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return errors.New(`required flag "config" not set`)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:           %d\n", cfg.Port)
	fmt.Fprintf(out, "  Database:       %s\n", cfg.Database)
	fmt.Fprintf(out, "  Log level:      %s\n", cfg.LogLevel)
	fmt.Fprintf(out, "  Dispatch trace: %t\n", *cfg.DispatchTrace)
	fmt.Fprintf(out, "  Task timeout:   %s\n", cfg.TaskTimeout.Duration())
	fmt.Fprintf(out, "  Fetch:          timeout %s, %d workers, %d retries\n",
		cfg.Fetch.Timeout.Duration(), cfg.Fetch.MaxConcurrency, *cfg.Fetch.Retries)
	fmt.Fprintf(out, "  Feeds:          %d\n", len(cfg.Feeds))

	return nil
}
