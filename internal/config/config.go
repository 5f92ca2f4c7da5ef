// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// eBay API credentials.
	EbayAppID  string
	EbayCertID string

	// Telegram settings. ChatIDs is the static recipient list; the
	// dispatcher merges it with active subscribers from the store.
	TelegramBotToken string
	TelegramChatIDs  []string

	// Search settings.
	Keywords        []string
	ExcludeKeywords []string

	// eBay settings.
	SiteID        string
	CheckInterval int
	MaxResults    int

	// Price and condition filters. Prices are decimal strings passed
	// through to the API filter syntax unparsed.
	MinPrice   string
	MaxPrice   string
	Conditions []string

	// Location filters.
	LocationCountry string
	LocatedIn       []string
	ShipsTo         string
	PostalCode      string
	SearchRadius    string

	// Storage. DatabaseURL selects Postgres when set, otherwise SQLite
	// at DatabasePath.
	DatabasePath  string
	DatabaseURL   string
	RetentionDays int

	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		EbayAppID:        os.Getenv("EBAY_APP_ID"),
		EbayCertID:       os.Getenv("EBAY_CERT_ID"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatIDs:  splitList(os.Getenv("TELEGRAM_CHAT_ID")),
		Keywords:         splitList(os.Getenv("SEARCH_KEYWORDS")),
		SiteID:           envOrDefault("EBAY_SITE_ID", "EBAY_US"),
		MinPrice:         os.Getenv("MIN_PRICE"),
		MaxPrice:         os.Getenv("MAX_PRICE"),
		Conditions:       splitList(os.Getenv("CONDITION_FILTER")),
		ShipsTo:          os.Getenv("SHIPS_TO"),
		PostalCode:       os.Getenv("ITEM_LOCATION_POSTAL_CODE"),
		SearchRadius:     os.Getenv("ITEM_LOCATION_RADIUS"),
		LocationCountry:  os.Getenv("ITEM_LOCATION_COUNTRY"),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/tracker.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
	}

	for _, kw := range splitList(os.Getenv("EXCLUDE_KEYWORDS")) {
		cfg.ExcludeKeywords = append(cfg.ExcludeKeywords, strings.ToLower(kw))
	}
	for _, loc := range splitList(os.Getenv("LOCATED_IN")) {
		cfg.LocatedIn = append(cfg.LocatedIn, strings.ToUpper(loc))
	}

	var err error
	if cfg.CheckInterval, err = envInt("CHECK_INTERVAL", 30); err != nil {
		return nil, err
	}
	if cfg.MaxResults, err = envInt("MAX_RESULTS", 50); err != nil {
		return nil, err
	}
	if cfg.RetentionDays, err = envInt("RETENTION_DAYS", 0); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required values, collecting every problem into one error.
func (c *Config) Validate() error {
	var errs []string
	if c.EbayAppID == "" {
		errs = append(errs, "EBAY_APP_ID is required")
	}
	if len(c.Keywords) == 0 {
		errs = append(errs, "SEARCH_KEYWORDS is required (at least one keyword)")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// TelegramEnabled reports whether notifications can be sent at all.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}
