package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ebay_tracker/internal/bot"
	"ebay_tracker/internal/config"
	"ebay_tracker/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		return 1
	}
	if !cfg.TelegramEnabled() {
		slog.Error("invalid config", "error", errors.New("TELEGRAM_BOT_TOKEN is required"))
		return 1
	}

	log := newLogger(cfg.LogLevel)

	store, err := openStorage(cfg, log)
	if err != nil {
		log.Error("open storage", "error", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg.TelegramBotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("bot started", "keywords", strings.Join(cfg.Keywords, ", "))
	b.Run(ctx)
	log.Info("bot stopped")
	return 0
}

func openStorage(cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.DatabaseURL != "" {
		log.Info("using postgres storage")
		return storage.NewPostgres(context.Background(), cfg.DatabaseURL)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	return storage.NewSQLite(cfg.DatabasePath)
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
