package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/agentmail/agentmail-mcp/internal/archiveset"
	"github.com/agentmail/agentmail-mcp/internal/reservations"
	"github.com/agentmail/agentmail-mcp/internal/store"
	"github.com/spf13/cobra"
)

var runJanitorOnceCmd = &cobra.Command{
	Use:   "run-janitor-once",
	Short: "Run a single reservation sweep and exit",
	Long: `Release every reservation whose TTL has expired and remove its archive
mirror file, the same work the janitor schedule performs on an interval —
useful for a cron job or a one-off operator nudge without standing up the
full server.`,
	Args: cobra.NoArgs,
	RunE: runJanitorOnce,
}

func init() {
	rootCmd.AddCommand(runJanitorOnceCmd)
}

func runJanitorOnce(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))

	st, err := store.Open(ctx, store.Config{
		Path:          cfg.Store.Path,
		MaxOpenConns:  cfg.Store.MaxOpenConns,
		BusyTimeoutMS: cfg.Store.BusyTimeoutMS,
		SlowQueryMS:   cfg.Store.SlowQueryMS,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	svc := reservations.NewService(st)
	svc.Archives = archiveset.New(cfg.Archive.StorageRoot)
	svc.LockTimeout = time.Duration(cfg.Archive.LockTimeoutSeconds) * time.Second
	svc.MinTTL = time.Duration(cfg.Reservations.MinTTLSeconds) * time.Second
	svc.Logger = logger

	count, err := svc.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sweeping reservations: %w", err)
	}
	fmt.Printf("released %d expired or stale reservation(s)\n", count)
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
