package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/feedstore"
	"github.com/jpalmerr/feedstore/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the feedstore HTTP API server.

The server will:
  - Load configuration from the specified YAML file (or defaults)
  - Open the SQLite database and load stored feeds
  - Serve the state, action and SSE endpoints on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  feedstore serve -c feedstore.yaml
  feedstore serve --port 9090`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "override the configured port")
	cmd.Flags().Bool("no-refresh", false, "skip the initial refresh on start")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"database", cfg.Database,
		"feeds", len(cfg.Feeds),
		"task_timeout", cfg.TaskTimeout.Duration().String(),
	)

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go logEffects(ctx, st, logger)

	srv := server.NewServer(st, cfg.Port, logger.With("component", "server"))
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	if noRefresh, _ := cmd.Flags().GetBool("no-refresh"); !noRefresh {
		st.Dispatch(feedstore.Refresh{ForceLoad: false})
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// logEffects reports failures surfaced by the store until ctx is done.
func logEffects(ctx context.Context, st *feedstore.Store, logger *slog.Logger) {
	effects := st.SubscribeEffects()
	defer st.UnsubscribeEffects(effects)

	for {
		select {
		case e, ok := <-effects:
			if !ok {
				return
			}
			ee, isErr := e.(feedstore.ErrorEffect)
			if !isErr || ee.IsDiagnostic() {
				continue
			}
			logger.Warn("store error", "error", ee.Err)
		case <-ctx.Done():
			return
		}
	}
}
