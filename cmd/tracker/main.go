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
	"time"

	"ebay_tracker/internal/config"
	"ebay_tracker/internal/ebay"
	"ebay_tracker/internal/notify"
	"ebay_tracker/internal/rates"
	"ebay_tracker/internal/storage"
	"ebay_tracker/internal/tracker"
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

	log := newLogger(cfg.LogLevel)

	store, err := openStorage(cfg, log)
	if err != nil {
		log.Error("open storage", "error", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	search := ebay.New(ebay.Options{
		AppID:      cfg.EbayAppID,
		CertID:     cfg.EbayCertID,
		SiteID:     cfg.SiteID,
		MaxResults: cfg.MaxResults,
		Filters: ebay.Filters{
			Exclude:         cfg.ExcludeKeywords,
			MinPrice:        cfg.MinPrice,
			MaxPrice:        cfg.MaxPrice,
			Conditions:      cfg.Conditions,
			LocationCountry: cfg.LocationCountry,
			LocatedIn:       cfg.LocatedIn,
			ShipsTo:         cfg.ShipsTo,
			PostalCode:      cfg.PostalCode,
			SearchRadius:    cfg.SearchRadius,
		},
	}, &http.Client{Timeout: 15 * time.Second}, log)

	notifier, err := notify.New(cfg.TelegramBotToken, cfg.TelegramChatIDs, store, rates.New(), log)
	if err != nil {
		log.Error("create notifier", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("tracker started",
		"keywords", strings.Join(cfg.Keywords, ", "),
		"site", cfg.SiteID,
		"telegram", cfg.TelegramEnabled(),
	)

	t := tracker.New(store, search, notifier, cfg.Keywords, cfg.RetentionDays, log)
	newItems, err := t.Run(ctx)
	if err != nil {
		log.Error("tracker run failed", "error", err)
		notifier.NotifyError(ctx, "Tracker error: "+err.Error())
		return 1
	}

	log.Info("tracker finished", "new_items", newItems)
	return 0
}

// openStorage selects Postgres when DATABASE_URL is set, SQLite otherwise.
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
