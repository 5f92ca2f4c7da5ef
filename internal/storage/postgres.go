package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ebay_tracker/internal/model"
)

// Postgres implements Storage backed by a PostgreSQL database. It is
// selected when DATABASE_URL is set; the schema is bootstrapped on open.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at connStr and ensures the schema.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS seen_items (
			item_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			price TEXT,
			currency TEXT,
			url TEXT NOT NULL,
			image_url TEXT,
			condition_display TEXT,
			seller_username TEXT,
			listing_date TEXT,
			search_keyword TEXT,
			listing_type TEXT,
			end_time TIMESTAMPTZ,
			bid_count TEXT,
			shipping_cost TEXT,
			shipping_currency TEXT,
			first_seen_at TIMESTAMPTZ NOT NULL,
			notified BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_seen_items_first_seen ON seen_items(first_seen_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_seen_items_keyword ON seen_items(search_keyword)`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id TEXT PRIMARY KEY,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			subscribed_at TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	}
	for _, q := range queries {
		if _, err := p.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Exists reports whether a listing has been seen before.
func (p *Postgres) Exists(ctx context.Context, itemID string) (bool, error) {
	var one int
	err := p.pool.QueryRow(ctx,
		`SELECT 1 FROM seen_items WHERE item_id = $1`, itemID,
	).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return true, nil
}

// InsertIfNew inserts a listing unless its item ID is already present.
func (p *Postgres) InsertIfNew(ctx context.Context, l *model.Listing) (bool, error) {
	now := time.Now()
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO seen_items (
			item_id, title, price, currency, url, image_url,
			condition_display, seller_username, listing_date,
			search_keyword, listing_type, end_time, bid_count,
			shipping_cost, shipping_currency, first_seen_at, notified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, FALSE)
		ON CONFLICT (item_id) DO NOTHING`,
		l.ItemID, l.Title, nullable(l.Price), nullable(l.Currency), l.URL,
		nullable(l.ImageURL), nullable(l.Condition), nullable(l.Seller),
		nullable(l.ListingDate), nullable(l.Keyword),
		nullable(string(l.ListingType)), l.EndTime, nullable(l.BidCount),
		nullable(l.ShippingCost), nullable(l.ShippingCurrency), now,
	)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	l.FirstSeenAt = now
	l.Notified = false
	return true, nil
}

// MarkNotified flags a listing as delivered. Idempotent.
func (p *Postgres) MarkNotified(ctx context.Context, itemID string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE seen_items SET notified = TRUE WHERE item_id = $1`, itemID,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// RecentItems returns the most recently seen listings, newest first.
func (p *Postgres) RecentItems(ctx context.Context, limit int, keyword string) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM seen_items`
	args := []any{}
	if keyword != "" {
		query += ` WHERE search_keyword = $1 ORDER BY first_seen_at DESC LIMIT $2`
		args = append(args, keyword, limit)
	} else {
		query += ` ORDER BY first_seen_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListingPG(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Stats returns aggregate listing counts.
func (p *Postgres) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{ItemsByKeyword: map[string]int{}}

	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM seen_items`).Scan(&stats.TotalItems)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	err = p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM seen_items WHERE first_seen_at::date = current_date`,
	).Scan(&stats.ItemsToday)
	if err != nil {
		return nil, fmt.Errorf("count items today: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT search_keyword, COUNT(*) FROM seen_items
		 WHERE search_keyword IS NOT NULL
		 GROUP BY search_keyword ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("count items by keyword: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kw string
		var count int
		if err := rows.Scan(&kw, &count); err != nil {
			return nil, fmt.Errorf("scan keyword count: %w", err)
		}
		stats.ItemsByKeyword[kw] = count
	}
	return stats, rows.Err()
}

// PurgeOlderThan deletes listing rows older than the retention window.
func (p *Postgres) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM seen_items WHERE first_seen_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AddSubscriber inserts a new subscriber or reactivates an inactive one.
func (p *Postgres) AddSubscriber(ctx context.Context, sub *model.Subscriber) (bool, error) {
	now := time.Now()
	var wasActive *bool
	err := p.pool.QueryRow(ctx,
		`INSERT INTO subscribers (chat_id, username, first_name, last_name, subscribed_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)
		 ON CONFLICT (chat_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_active = TRUE
		 RETURNING (SELECT s.is_active FROM subscribers s WHERE s.chat_id = $1)`,
		sub.ChatID, nullable(sub.Username), nullable(sub.FirstName),
		nullable(sub.LastName), now,
	).Scan(&wasActive)
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	if wasActive == nil {
		sub.SubscribedAt = now
	}
	sub.IsActive = true
	return wasActive == nil || !*wasActive, nil
}

// RemoveSubscriber deactivates a subscriber, keeping the row.
func (p *Postgres) RemoveSubscriber(ctx context.Context, chatID string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE subscribers SET is_active = FALSE WHERE chat_id = $1 AND is_active`, chatID,
	)
	if err != nil {
		return false, fmt.Errorf("remove subscriber: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsSubscribed reports whether a chat has an active subscription.
func (p *Postgres) IsSubscribed(ctx context.Context, chatID string) (bool, error) {
	var one int
	err := p.pool.QueryRow(ctx,
		`SELECT 1 FROM subscribers WHERE chat_id = $1 AND is_active`, chatID,
	).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return true, nil
}

// ActiveSubscribers returns the chat IDs of all active subscribers.
func (p *Postgres) ActiveSubscribers(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT chat_id FROM subscribers WHERE is_active ORDER BY chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SubscriberStats returns aggregate subscriber counts.
func (p *Postgres) SubscriberStats(ctx context.Context) (*model.SubscriberStats, error) {
	stats := &model.SubscriberStats{}
	err := p.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE subscribed_at >= $1),
			COUNT(*)
		 FROM subscribers`,
		time.Now().AddDate(0, 0, -7),
	).Scan(&stats.Active, &stats.Recent, &stats.Total)
	if err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}
	return stats, nil
}

func scanListingPG(row pgx.Row) (model.Listing, error) {
	var l model.Listing
	var price, currency, imageURL, condition, seller *string
	var listingDate, keyword, listingType *string
	var bidCount, shippingCost, shippingCurrency *string

	err := row.Scan(&l.ItemID, &l.Title, &price, &currency, &l.URL, &imageURL,
		&condition, &seller, &listingDate, &keyword, &listingType, &l.EndTime,
		&bidCount, &shippingCost, &shippingCurrency, &l.FirstSeenAt, &l.Notified)
	if err != nil {
		return l, fmt.Errorf("scan listing: %w", err)
	}

	l.Price = deref(price)
	l.Currency = deref(currency)
	l.ImageURL = deref(imageURL)
	l.Condition = deref(condition)
	l.Seller = deref(seller)
	l.ListingDate = deref(listingDate)
	l.Keyword = deref(keyword)
	l.ListingType = model.ListingType(deref(listingType))
	l.BidCount = deref(bidCount)
	l.ShippingCost = deref(shippingCost)
	l.ShippingCurrency = deref(shippingCurrency)
	return l, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*Postgres)(nil)
