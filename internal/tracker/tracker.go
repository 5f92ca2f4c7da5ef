// Package tracker runs one poll-filter-store-notify pass over all
// configured keywords.
package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"ebay_tracker/internal/model"
	"ebay_tracker/internal/storage"
)

// Searcher returns filtered listings for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string) []model.Listing
}

// Notifier dispatches messages about new listings.
type Notifier interface {
	NotifyNewItem(ctx context.Context, l model.Listing) bool
	NotifySummary(ctx context.Context, newItems int, keywords []string) bool
}

// Tracker orchestrates a single run. Each invocation is independent; the
// only state that survives between runs lives in the record store, so
// reprocessing previously-seen listings performs no writes and sends no
// notifications.
type Tracker struct {
	store         storage.Storage
	search        Searcher
	notifier      Notifier
	keywords      []string
	retentionDays int
	log           *slog.Logger
}

// New creates a Tracker. retentionDays of zero disables purging.
func New(store storage.Storage, search Searcher, notifier Notifier, keywords []string, retentionDays int, log *slog.Logger) *Tracker {
	return &Tracker{
		store:         store,
		search:        search,
		notifier:      notifier,
		keywords:      keywords,
		retentionDays: retentionDays,
		log:           log,
	}
}

// Run polls every keyword once and returns the number of new listings.
// Storage errors abort the run; search and notification failures are
// handled locally and never do.
func (t *Tracker) Run(ctx context.Context) (int, error) {
	totalNew := 0

	for _, keyword := range t.keywords {
		if err := ctx.Err(); err != nil {
			return totalNew, err
		}

		items := t.search.Search(ctx, keyword)
		t.log.Info("search complete", "keyword", keyword, "found", len(items))

		newItems := 0
		for i := range items {
			inserted, err := t.store.InsertIfNew(ctx, &items[i])
			if err != nil {
				return totalNew, fmt.Errorf("insert item %s: %w", items[i].ItemID, err)
			}
			if !inserted {
				continue
			}
			newItems++
			totalNew++
			t.log.Info("new listing",
				"item_id", items[i].ItemID,
				"title", items[i].Title,
				"price", items[i].Price,
				"currency", items[i].Currency,
			)

			if t.notifier == nil {
				continue
			}
			if t.notifier.NotifyNewItem(ctx, items[i]) {
				if err := t.store.MarkNotified(ctx, items[i].ItemID); err != nil {
					return totalNew, fmt.Errorf("mark notified %s: %w", items[i].ItemID, err)
				}
			}
		}
		t.log.Info("keyword done", "keyword", keyword, "new", newItems)
	}

	if t.retentionDays > 0 {
		purged, err := t.store.PurgeOlderThan(ctx, t.retentionDays)
		if err != nil {
			return totalNew, fmt.Errorf("purge old items: %w", err)
		}
		if purged > 0 {
			t.log.Info("purged old listings", "count", purged, "retention_days", t.retentionDays)
		}
	}

	stats, err := t.store.Stats(ctx)
	if err != nil {
		return totalNew, fmt.Errorf("read stats: %w", err)
	}
	t.log.Info("scan complete",
		"new_items", totalNew,
		"total_items", stats.TotalItems,
		"items_today", stats.ItemsToday,
	)

	if totalNew > 0 && t.notifier != nil {
		t.notifier.NotifySummary(ctx, totalNew, t.keywords)
	}
	return totalNew, nil
}
