package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"cloudmon/internal/config"
	"cloudmon/internal/dashboard"
	"cloudmon/internal/extract"
	"cloudmon/internal/pusher"
	"cloudmon/internal/scanner"
	"cloudmon/internal/source"
	"cloudmon/internal/storage"
)

func main() {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./data/config.json"
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("load config", "path", path, "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.Monitoring.DataDir, 0o750); err != nil {
		log.Error("create data directory", "path", cfg.Monitoring.DataDir, "error", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLite(filepath.Join(cfg.Monitoring.DataDir, "cloudmon.db"))
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tg, err := source.NewTelegram(cfg, log)
	if err != nil {
		log.Error("create telegram source", "error", err)
		os.Exit(1)
	}

	disp := pusher.New(http.DefaultClient, store, cfg.Sink.URL, cfg.Sink.Key, cfg.Monitoring.MaxConcurrentRequests, log)
	ext := extract.New(cfg.EnabledDrives())
	board := dashboard.NewPrinter(os.Stdout, ruleNames(cfg))
	ctrl := scanner.New(tg, ext, disp, store, board, cfg, log)

	log.Info("starting monitor", "channels", len(cfg.Monitoring.Channels), "rules", len(cfg.Rules))

	if err := tg.Run(ctx, func(ctx context.Context) error {
		ctrl.Run(ctx)
		return nil
	}); err != nil && ctx.Err() == nil {
		log.Error("telegram client", "error", err)
		os.Exit(1)
	}

	log.Info("monitor stopped")
}

func ruleNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Rules))
	for i, r := range cfg.Rules {
		names[i] = r.Name
	}
	return names
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
