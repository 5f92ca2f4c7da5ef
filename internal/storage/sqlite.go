package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"ebay_tracker/internal/model"
	"ebay_tracker/migrations"
)

// Timestamps are stored as local wall-clock strings so that the
// "items today" statistic follows the local calendar date.
const (
	timeLayout = "2006-01-02T15:04:05"
	dateLayout = "2006-01-02"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Exists reports whether a listing has been seen before.
func (s *SQLite) Exists(ctx context.Context, itemID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_items WHERE item_id = ?`, itemID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return true, nil
}

// InsertIfNew inserts a listing unless its item ID is already present.
// It reports whether a row was actually inserted; on insertion the
// listing's FirstSeenAt is populated and Notified reset to false.
func (s *SQLite) InsertIfNew(ctx context.Context, l *model.Listing) (bool, error) {
	now := time.Now()
	var endTime *string
	if l.EndTime != nil {
		v := l.EndTime.UTC().Format(time.RFC3339)
		endTime = &v
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_items (
			item_id, title, price, currency, url, image_url,
			condition_display, seller_username, listing_date,
			search_keyword, listing_type, end_time, bid_count,
			shipping_cost, shipping_currency, first_seen_at, notified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		l.ItemID, l.Title, nullable(l.Price), nullable(l.Currency), l.URL,
		nullable(l.ImageURL), nullable(l.Condition), nullable(l.Seller),
		nullable(l.ListingDate), nullable(l.Keyword),
		nullable(string(l.ListingType)), endTime, nullable(l.BidCount),
		nullable(l.ShippingCost), nullable(l.ShippingCurrency),
		now.Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	l.FirstSeenAt = now
	l.Notified = false
	return true, nil
}

// MarkNotified flags a listing as delivered. Idempotent.
func (s *SQLite) MarkNotified(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE seen_items SET notified = 1 WHERE item_id = ?`, itemID,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

const listingColumns = `item_id, title, price, currency, url, image_url,
	condition_display, seller_username, listing_date, search_keyword,
	listing_type, end_time, bid_count, shipping_cost, shipping_currency,
	first_seen_at, notified`

// RecentItems returns the most recently seen listings, newest first,
// optionally restricted to one search keyword.
func (s *SQLite) RecentItems(ctx context.Context, limit int, keyword string) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM seen_items`
	args := []any{}
	if keyword != "" {
		query += ` WHERE search_keyword = ?`
		args = append(args, keyword)
	}
	query += ` ORDER BY first_seen_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Stats returns aggregate listing counts.
func (s *SQLite) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{ItemsByKeyword: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_items`).Scan(&stats.TotalItems)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	today := time.Now().Format(dateLayout)
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_items WHERE DATE(first_seen_at) = ?`, today,
	).Scan(&stats.ItemsToday)
	if err != nil {
		return nil, fmt.Errorf("count items today: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT search_keyword, COUNT(*) FROM seen_items
		 WHERE search_keyword IS NOT NULL
		 GROUP BY search_keyword ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("count items by keyword: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// PurgeOlderThan deletes listings first seen more than the given number of
// days ago and reports how many rows were removed. Subscribers are untouched.
func (s *SQLite) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_items WHERE first_seen_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// AddSubscriber inserts a new subscriber or reactivates an inactive one.
// It reports whether the subscriber was previously absent or inactive; on
// insertion the subscriber's SubscribedAt and IsActive are populated.
func (s *SQLite) AddSubscriber(ctx context.Context, sub *model.Subscriber) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var isActive int
	err = tx.QueryRowContext(ctx,
		`SELECT is_active FROM subscribers WHERE chat_id = ?`, sub.ChatID,
	).Scan(&isActive)
	switch {
	case err == sql.ErrNoRows:
		now := time.Now()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO subscribers (chat_id, username, first_name, last_name, subscribed_at, is_active)
			 VALUES (?, ?, ?, ?, ?, 1)`,
			sub.ChatID, nullable(sub.Username), nullable(sub.FirstName),
			nullable(sub.LastName), now.Format(timeLayout),
		)
		if err != nil {
			return false, fmt.Errorf("insert subscriber: %w", err)
		}
		sub.SubscribedAt = now
		sub.IsActive = true
		return true, tx.Commit()
	case err != nil:
		return false, fmt.Errorf("check subscriber: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE subscribers SET username = ?, first_name = ?, last_name = ?, is_active = 1
		 WHERE chat_id = ?`,
		nullable(sub.Username), nullable(sub.FirstName), nullable(sub.LastName), sub.ChatID,
	)
	if err != nil {
		return false, fmt.Errorf("update subscriber: %w", err)
	}
	sub.IsActive = true
	return isActive == 0, tx.Commit()
}

// RemoveSubscriber deactivates a subscriber and reports whether the
// subscription was active. The row is kept.
func (s *SQLite) RemoveSubscriber(ctx context.Context, chatID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET is_active = 0 WHERE chat_id = ? AND is_active = 1`, chatID,
	)
	if err != nil {
		return false, fmt.Errorf("remove subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// IsSubscribed reports whether a chat has an active subscription.
func (s *SQLite) IsSubscribed(ctx context.Context, chatID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM subscribers WHERE chat_id = ? AND is_active = 1`, chatID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return true, nil
}

// ActiveSubscribers returns the chat IDs of all active subscribers.
func (s *SQLite) ActiveSubscribers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id FROM subscribers WHERE is_active = 1 ORDER BY chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// SubscriberStats returns aggregate subscriber counts. Recent counts
// subscriptions created within the last seven days.
func (s *SQLite) SubscriberStats(ctx context.Context) (*model.SubscriberStats, error) {
	stats := &model.SubscriberStats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE is_active = 1`,
	).Scan(&stats.Active)
	if err != nil {
		return nil, fmt.Errorf("count active subscribers: %w", err)
	}

	weekAgo := time.Now().AddDate(0, 0, -7).Format(timeLayout)
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE subscribed_at >= ?`, weekAgo,
	).Scan(&stats.Recent)
	if err != nil {
		return nil, fmt.Errorf("count recent subscribers: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&stats.Total)
	if err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}
	return stats, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (model.Listing, error) {
	var l model.Listing
	var price, currency, imageURL, condition, seller sql.NullString
	var listingDate, keyword, listingType, endTime sql.NullString
	var bidCount, shippingCost, shippingCurrency sql.NullString
	var firstSeen string
	var notified int

	err := row.Scan(&l.ItemID, &l.Title, &price, &currency, &l.URL, &imageURL,
		&condition, &seller, &listingDate, &keyword, &listingType, &endTime,
		&bidCount, &shippingCost, &shippingCurrency, &firstSeen, &notified)
	if err != nil {
		return l, fmt.Errorf("scan listing: %w", err)
	}

	l.Price = price.String
	l.Currency = currency.String
	l.ImageURL = imageURL.String
	l.Condition = condition.String
	l.Seller = seller.String
	l.ListingDate = listingDate.String
	l.Keyword = keyword.String
	l.ListingType = model.ListingType(listingType.String)
	l.BidCount = bidCount.String
	l.ShippingCost = shippingCost.String
	l.ShippingCurrency = shippingCurrency.String
	l.Notified = notified == 1
	l.FirstSeenAt, _ = time.ParseInLocation(timeLayout, firstSeen, time.Local)
	if endTime.Valid {
		t, err := time.Parse(time.RFC3339, endTime.String)
		if err == nil {
			l.EndTime = &t
		}
	}
	return l, nil
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
