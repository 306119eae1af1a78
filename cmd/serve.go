package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/config"
	"github.com/Tiliavir/trivial-study-tracker/internal/presence"
	"github.com/Tiliavir/trivial-study-tracker/internal/server"
	"github.com/Tiliavir/trivial-study-tracker/internal/storage"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
}

// openStore opens the database named in the server config, creating its
// directory if needed.
func openStore(cfg config.Config, logger *slog.Logger) (*storage.Store, error) {
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return storage.Open(storage.Config{Path: path, Logger: logger})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return userError{err}
	}
	logger := newLogger(cfg)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := timer.NewEngine(store,
		timer.WithLogger(logger.With("component", "timer")),
		timer.WithLocation(loc),
	)
	broadcaster := presence.NewBroadcaster(store,
		presence.WithLogger(logger.With("component", "presence")),
		presence.WithInterval(cfg.PushInterval()),
		presence.WithLocation(loc),
	)
	srv := server.New(server.SettingsFromConfig(cfg), server.Deps{
		Engine:   engine,
		Queries:  store,
		Auth:     store,
		Presence: broadcaster,
	}, server.WithLogger(logger.With("component", "server")))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Serving on %s (push every %s, timezone %s)\n", srv.BaseURL(), cfg.PushInterval(), loc)

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
