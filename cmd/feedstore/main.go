// Package main is the entry point for the feedstore CLI.
//
// Usage:
//
//	feedstore serve -c feedstore.yaml     # Serve the HTTP API and SSE stream
//	feedstore fetch --force               # Refresh once and print posts
//	feedstore fetch --add https://...     # Subscribe to a feed
//	feedstore validate -c feedstore.yaml  # Validate configuration
//	feedstore version                     # Show version info
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/feedstore"
	"github.com/jpalmerr/feedstore/config"
	"github.com/jpalmerr/feedstore/internal/reader"
	"github.com/jpalmerr/feedstore/internal/storage"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultEnvFile = ".env"

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "feedstore",
		Short: "A feed reader built around a unidirectional state store",
		Long: `feedstore keeps a set of RSS, Atom and JSON feed subscriptions in SQLite
and exposes them through a single state store.

Every change goes through an action: refresh, add, delete or select.
Only one feed operation runs at a time; concurrent requests are rejected
with an "In progress" effect.

Quick start:
  1. Create a config file (feedstore.yaml) listing your feeds
  2. Run: feedstore serve -c feedstore.yaml
  3. Watch: curl -N http://localhost:8080/api/sse

Example config:
  port: 8080
  database: feedstore.db
  feeds:
    - https://go.dev/blog/feed.atom`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return loadEnvFile(envFile)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (defaults apply when omitted)")
	root.PersistentFlags().String("env-file", "", "path to a .env file loaded before the config (default .env if present)")

	root.AddCommand(newVersionCmd(), newServeCmd(), newFetchCmd(), newValidateCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this feedstore binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "feedstore %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. An empty path loads .env only if it exists.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the --config file, or returns defaults without one.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger creates a JSON logger for CLI use.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})), nil
}

// openStore wires storage, reader and store. The returned close func tears
// them down in reverse order.
func openStore(cfg *config.Config, logger *slog.Logger) (*feedstore.Store, func(), error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	rd := reader.New(db, config.BuildReaderConfig(cfg), logger.With("component", "reader"))

	st, err := feedstore.New(rd, config.BuildStoreOptions(cfg, logger.With("component", "store"))...)
	if err != nil {
		rd.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	closeAll := func() {
		st.Close()
		rd.Close()
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	return st, closeAll, nil
}
