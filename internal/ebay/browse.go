package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ebay_tracker/internal/model"
)

// Items are decoded one by one so that a malformed element drops only
// itself, not the whole batch.
type browseResponse struct {
	ItemSummaries []json.RawMessage `json:"itemSummaries"`
}

type browseItem struct {
	ItemID          string                 `json:"itemId"`
	Title           string                 `json:"title"`
	ItemWebURL      string                 `json:"itemWebUrl"`
	Price           *browseAmount          `json:"price"`
	Image           *browseImage           `json:"image"`
	Condition       string                 `json:"condition"`
	Seller          *browseSeller          `json:"seller"`
	BuyingOptions   []string               `json:"buyingOptions"`
	ItemEndDate     string                 `json:"itemEndDate"`
	BidCount        *int                   `json:"bidCount"`
	ItemLocation    *browseLocation        `json:"itemLocation"`
	ShippingOptions []browseShippingOption `json:"shippingOptions"`
}

type browseAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type browseImage struct {
	ImageURL string `json:"imageUrl"`
}

type browseSeller struct {
	Username string `json:"username"`
}

type browseLocation struct {
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type browseShippingOption struct {
	ShippingCost *browseAmount `json:"shippingCost"`
}

// searchBrowse queries the Browse API item summary search.
func (c *Client) searchBrowse(ctx context.Context, keyword string) ([]model.Listing, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	limit := c.maxResults
	if limit > browseMaxResults {
		limit = browseMaxResults
	}

	q := url.Values{}
	q.Set("q", keyword)
	q.Set("sort", "newlyListed")
	q.Set("limit", strconv.Itoa(limit))
	if filter := c.browseFilter(); filter != "" {
		q.Set("filter", filter)
	}
	if c.filters.PostalCode != "" {
		q.Set("buyerPostalCode", c.filters.PostalCode)
		if c.filters.SearchRadius != "" {
			q.Set("searchRadius", c.filters.SearchRadius)
		}
	}

	reqURL := browseAPIURL + "/item_summary/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace())

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("browse search: %w", err)
	}

	var resp browseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode browse response: %w", err)
	}
	return c.parseBrowse(&resp, keyword), nil
}

// browseFilter builds the comma-joined Browse API filter expression.
func (c *Client) browseFilter() string {
	var parts []string
	if c.filters.MinPrice != "" {
		parts = append(parts, fmt.Sprintf("price:[%s..]", c.filters.MinPrice))
	}
	if c.filters.MaxPrice != "" {
		parts = append(parts, fmt.Sprintf("price:[..%s]", c.filters.MaxPrice))
	}
	if len(c.filters.Conditions) > 0 {
		parts = append(parts, fmt.Sprintf("conditions:{%s}", strings.Join(c.filters.Conditions, "|")))
	}
	country := c.filters.LocationCountry
	if country == "" && len(c.filters.LocatedIn) > 0 {
		country = c.filters.LocatedIn[0]
	}
	if country != "" {
		parts = append(parts, "itemLocationCountry:"+country)
	}
	return strings.Join(parts, ",")
}

func (c *Client) parseBrowse(resp *browseResponse, keyword string) []model.Listing {
	var listings []model.Listing
	for _, raw := range resp.ItemSummaries {
		var item browseItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.log.Warn("skipping undecodable browse item", "error", err)
			continue
		}
		if item.ItemID == "" || item.Title == "" || item.ItemWebURL == "" {
			c.log.Warn("skipping browse item with missing fields", "item_id", item.ItemID)
			continue
		}

		l := model.Listing{
			ItemID:  item.ItemID,
			Title:   item.Title,
			URL:     item.ItemWebURL,
			Keyword: keyword,
			// The Browse API does not expose a start time.
			ListingDate: time.Now().Format("2006-01-02 15:04"),
		}
		if item.Price != nil {
			l.Price = item.Price.Value
			l.Currency = item.Price.Currency
		}
		if item.Image != nil {
			l.ImageURL = item.Image.ImageURL
		}
		l.Condition = item.Condition
		if item.Seller != nil {
			l.Seller = item.Seller.Username
		}
		l.ListingType = listingTypeFromBuyingOptions(item.BuyingOptions)
		if item.ItemEndDate != "" {
			if t, err := time.Parse(time.RFC3339, item.ItemEndDate); err == nil {
				l.EndTime = &t
			}
		}
		if item.BidCount != nil {
			l.BidCount = strconv.Itoa(*item.BidCount)
		}
		if len(item.ShippingOptions) > 0 && item.ShippingOptions[0].ShippingCost != nil {
			l.ShippingCost = item.ShippingOptions[0].ShippingCost.Value
			l.ShippingCurrency = item.ShippingOptions[0].ShippingCost.Currency
		}

		if c.filters.excludesTitle(l.Title) {
			c.log.Debug("excluded by keyword", "title", l.Title)
			continue
		}
		if !c.filters.locationAllowed(browseLocationString(item.ItemLocation), c.marketplace()) {
			c.log.Debug("excluded by location", "title", l.Title)
			continue
		}

		listings = append(listings, l)
	}
	return listings
}

func browseLocationString(loc *browseLocation) string {
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(strings.Join([]string{loc.City, loc.PostalCode, loc.Country}, " "))
}

func listingTypeFromBuyingOptions(options []string) model.ListingType {
	for _, opt := range options {
		if opt == "AUCTION" {
			return model.ListingAuction
		}
	}
	for _, opt := range options {
		if opt == "FIXED_PRICE" || opt == "BEST_OFFER" {
			return model.ListingFixedPrice
		}
	}
	return ""
}
