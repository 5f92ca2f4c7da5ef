// Package model defines the domain types used across the application.
package model

import "time"

// ListingType classifies how a listing is sold.
type ListingType string

// Supported listing types. An empty value means the API did not report one.
const (
	ListingAuction    ListingType = "Auction"
	ListingFixedPrice ListingType = "FixedPrice"
)

// Listing represents one marketplace listing surfaced by a keyword search.
//
// Optional string fields are left empty when the API payload did not carry
// them; "unknown price" and "zero price" must stay distinguishable, so
// prices are kept as the API's decimal strings rather than parsed numbers.
type Listing struct {
	ItemID           string
	Title            string
	Price            string
	Currency         string
	URL              string
	ImageURL         string
	Condition        string
	Seller           string
	ListingDate      string
	Keyword          string
	ListingType      ListingType
	EndTime          *time.Time
	BidCount         string
	ShippingCost     string
	ShippingCurrency string
	FirstSeenAt      time.Time
	Notified         bool
}

// IsAuction reports whether the listing is sold by auction.
func (l *Listing) IsAuction() bool {
	return l.ListingType == ListingAuction
}

// Subscriber represents an opted-in notification recipient.
type Subscriber struct {
	ChatID       string
	Username     string
	FirstName    string
	LastName     string
	SubscribedAt time.Time
	IsActive     bool
}

// Stats aggregates listing counts from the record store.
type Stats struct {
	TotalItems     int
	ItemsToday     int
	ItemsByKeyword map[string]int
}

// SubscriberStats aggregates subscriber counts from the record store.
type SubscriberStats struct {
	Active int
	Recent int
	Total  int
}
