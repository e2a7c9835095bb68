// Command librotrackctl runs maintenance tasks against the lending database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adibqt/LibroTrack/internal/config"
	"github.com/adibqt/LibroTrack/internal/database"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "librotrackctl",
		Short:        "Maintenance commands for the LibroTrack lending service",
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newExpireCmd(),
		newTokenCmd(),
		newMemberCmd(),
	)
	return root
}

// connect loads the configuration and opens the database pool
func connect() (*config.Config, *database.Database, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, nil
}
