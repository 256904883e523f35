// Command backfill pulls historical bid announcements for a number of past
// calendar days and persists the ones matching the target agencies. It never
// sends notifications.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"g2b_monitor/internal/config"
	"g2b_monitor/internal/notify"
	"g2b_monitor/internal/service"
	"g2b_monitor/internal/source/g2b"
	"g2b_monitor/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	days := flag.Int("days", 30, "number of past days to backfill")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	bidStore := postgres.NewBidStore(db)

	source := g2b.New(g2b.Config{
		BaseURL:    cfg.G2B.BaseURL,
		APIKey:     cfg.G2B.APIKey,
		WindowDays: cfg.G2B.WindowDays,
		Timeout:    cfg.G2B.Timeout,
	}, logger)

	// The notifier stays idle during backfill; it is wired only so the
	// engine is constructed the same way as in the server.
	engine := service.NewEngine(source, bidStore, notify.NewDiscord("", logger), nil, logger, service.Config{
		TargetAgencyCodes: cfg.G2B.TargetAgencyCodes,
		PageSize:          cfg.G2B.PageSize,
		PageDelay:         cfg.Sync.PageDelay,
		DayDelay:          cfg.Sync.DayDelay,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	saved, err := engine.Backfill(ctx, *days)
	if err != nil {
		logger.Error("backfill aborted", "saved", saved, "error", err)
		os.Exit(1)
	}

	logger.Info("backfill finished", "days", *days, "saved", saved)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
