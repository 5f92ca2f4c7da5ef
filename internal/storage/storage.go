// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"ebay_tracker/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	Exists(ctx context.Context, itemID string) (bool, error)
	InsertIfNew(ctx context.Context, listing *model.Listing) (bool, error)
	MarkNotified(ctx context.Context, itemID string) error
	RecentItems(ctx context.Context, limit int, keyword string) ([]model.Listing, error)
	Stats(ctx context.Context) (*model.Stats, error)
	PurgeOlderThan(ctx context.Context, days int) (int64, error)

	AddSubscriber(ctx context.Context, sub *model.Subscriber) (bool, error)
	RemoveSubscriber(ctx context.Context, chatID string) (bool, error)
	IsSubscribed(ctx context.Context, chatID string) (bool, error)
	ActiveSubscribers(ctx context.Context) ([]string, error)
	SubscriberStats(ctx context.Context) (*model.SubscriberStats, error)

	Close() error
}
