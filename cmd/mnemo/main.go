package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/pkeogan/mnemo/internal/config"
	"github.com/pkeogan/mnemo/internal/storage"
	"github.com/pkeogan/mnemo/internal/web"
)

func main() {
	flags := flag.NewFlagSet("mnemo", flag.ExitOnError)
	configPath := flags.String("config", "mnemo.yaml", "Path to the YAML config file")
	flags.String("listen", ":8080", "Address the HTTP server binds to")
	flags.String("db", "mnemo.db", "Path to the SQLite database file")
	flags.Bool("debug", false, "Enable debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.DB)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DB, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.DB)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           web.NewServer(db, nil, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
