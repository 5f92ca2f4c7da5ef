package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ebay_tracker/internal/model"
)

// The Finding API wraps every field in a one-element array. The response
// types model that directly as slice fields, unwrapped with first().

type findingResponse struct {
	FindItemsAdvancedResponse []findingResult `json:"findItemsAdvancedResponse"`
}

type findingResult struct {
	Ack          []string              `json:"ack"`
	SearchResult []findingSearchResult `json:"searchResult"`
}

// Items are kept raw and decoded one by one; a malformed element drops
// only itself.
type findingSearchResult struct {
	Item []json.RawMessage `json:"item"`
}

type findingItem struct {
	ItemID        []string               `json:"itemId"`
	Title         []string               `json:"title"`
	ViewItemURL   []string               `json:"viewItemURL"`
	GalleryURL    []string               `json:"galleryURL"`
	Location      []string               `json:"location"`
	Country       []string               `json:"country"`
	Condition     []findingCondition     `json:"condition"`
	SellerInfo    []findingSellerInfo    `json:"sellerInfo"`
	SellingStatus []findingSellingStatus `json:"sellingStatus"`
	ListingInfo   []findingListingInfo   `json:"listingInfo"`
	ShippingInfo  []findingShippingInfo  `json:"shippingInfo"`
}

type findingAmount struct {
	Value      string `json:"__value__"`
	CurrencyID string `json:"@currencyId"`
}

type findingCondition struct {
	ConditionDisplayName []string `json:"conditionDisplayName"`
}

type findingSellerInfo struct {
	SellerUserName []string `json:"sellerUserName"`
}

type findingSellingStatus struct {
	CurrentPrice []findingAmount `json:"currentPrice"`
	BidCount     []string        `json:"bidCount"`
}

type findingListingInfo struct {
	StartTime   []string `json:"startTime"`
	EndTime     []string `json:"endTime"`
	ListingType []string `json:"listingType"`
}

type findingShippingInfo struct {
	ShippingServiceCost []findingAmount `json:"shippingServiceCost"`
	ShipToLocations     []string        `json:"shipToLocations"`
}

// searchFinding queries the legacy Finding API, which needs only the app
// key as a query parameter.
func (c *Client) searchFinding(ctx context.Context, keyword string) ([]model.Listing, error) {
	limit := c.maxResults
	if limit > findingMaxResults {
		limit = findingMaxResults
	}

	q := url.Values{}
	q.Set("OPERATION-NAME", "findItemsAdvanced")
	q.Set("SERVICE-VERSION", "1.0.0")
	q.Set("SECURITY-APPNAME", c.appID)
	q.Set("RESPONSE-DATA-FORMAT", "JSON")
	q.Set("REST-PAYLOAD", "")
	q.Set("keywords", keyword)
	q.Set("sortOrder", "StartTimeNewest")
	q.Set("paginationInput.entriesPerPage", strconv.Itoa(limit))
	c.addItemFilters(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, findingAPIURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("finding search: %w", err)
	}

	var resp findingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode finding response: %w", err)
	}
	return c.parseFinding(&resp, keyword), nil
}

// addItemFilters appends the indexed itemFilter(N) parameters.
func (c *Client) addItemFilters(q url.Values) {
	idx := 0
	setFilter := func(name, value string) {
		q.Set(fmt.Sprintf("itemFilter(%d).name", idx), name)
		q.Set(fmt.Sprintf("itemFilter(%d).value", idx), value)
		idx++
	}

	if c.filters.MinPrice != "" {
		setFilter("MinPrice", c.filters.MinPrice)
	}
	if c.filters.MaxPrice != "" {
		setFilter("MaxPrice", c.filters.MaxPrice)
	}
	if len(c.filters.Conditions) > 0 {
		q.Set(fmt.Sprintf("itemFilter(%d).name", idx), "Condition")
		for i, condition := range c.filters.Conditions {
			q.Set(fmt.Sprintf("itemFilter(%d).value(%d)", idx, i), condition)
		}
		idx++
	}
	if len(c.filters.LocatedIn) > 0 {
		q.Set(fmt.Sprintf("itemFilter(%d).name", idx), "LocatedIn")
		for i, code := range c.filters.LocatedIn {
			q.Set(fmt.Sprintf("itemFilter(%d).value(%d)", idx, i), code)
		}
		idx++
	}
	if c.filters.ShipsTo != "" {
		setFilter("AvailableTo", c.filters.ShipsTo)
	}
	if c.filters.PostalCode != "" {
		q.Set("buyerPostalCode", c.filters.PostalCode)
	}
}

func (c *Client) parseFinding(resp *findingResponse, keyword string) []model.Listing {
	if len(resp.FindItemsAdvancedResponse) == 0 {
		return nil
	}
	result := resp.FindItemsAdvancedResponse[0]
	if first(result.Ack) != "Success" || len(result.SearchResult) == 0 {
		return nil
	}

	var listings []model.Listing
	for _, raw := range result.SearchResult[0].Item {
		var item findingItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.log.Warn("skipping undecodable finding item", "error", err)
			continue
		}
		l := model.Listing{
			ItemID:  first(item.ItemID),
			Title:   first(item.Title),
			URL:     first(item.ViewItemURL),
			Keyword: keyword,
		}
		if l.ItemID == "" || l.Title == "" || l.URL == "" {
			c.log.Warn("skipping finding item with missing fields", "item_id", l.ItemID)
			continue
		}

		l.ImageURL = first(item.GalleryURL)
		if len(item.Condition) > 0 {
			l.Condition = first(item.Condition[0].ConditionDisplayName)
		}
		if len(item.SellerInfo) > 0 {
			l.Seller = first(item.SellerInfo[0].SellerUserName)
		}
		if len(item.SellingStatus) > 0 {
			status := item.SellingStatus[0]
			if len(status.CurrentPrice) > 0 {
				l.Price = status.CurrentPrice[0].Value
				l.Currency = status.CurrentPrice[0].CurrencyID
			}
			l.BidCount = first(status.BidCount)
		}
		if len(item.ListingInfo) > 0 {
			info := item.ListingInfo[0]
			if start := first(info.StartTime); start != "" {
				if t, err := time.Parse(time.RFC3339, start); err == nil {
					l.ListingDate = t.Format("2006-01-02 15:04")
				}
			}
			l.ListingType = listingTypeFromFinding(first(info.ListingType))
			if end := first(info.EndTime); end != "" {
				if t, err := time.Parse(time.RFC3339, end); err == nil {
					l.EndTime = &t
				}
			}
		}
		if len(item.ShippingInfo) > 0 && len(item.ShippingInfo[0].ShippingServiceCost) > 0 {
			cost := item.ShippingInfo[0].ShippingServiceCost[0]
			l.ShippingCost = cost.Value
			l.ShippingCurrency = cost.CurrencyID
		}

		if c.filters.excludesTitle(l.Title) {
			c.log.Debug("excluded by keyword", "title", l.Title)
			continue
		}
		if !c.filters.locationAllowed(findingLocationString(item), c.marketplace()) {
			c.log.Debug("excluded by location", "title", l.Title)
			continue
		}

		listings = append(listings, l)
	}
	return listings
}

// findingLocationString combines whatever location fields the payload
// exposes: the free-text location, the country, or a ship-to hint.
func findingLocationString(item findingItem) string {
	location := first(item.Location)
	country := first(item.Country)
	if country == "" && len(item.ShippingInfo) > 0 {
		country = first(item.ShippingInfo[0].ShipToLocations)
	}
	full := location
	if country != "" {
		if full != "" {
			full += " "
		}
		full += country
	}
	return full
}

func listingTypeFromFinding(raw string) model.ListingType {
	switch raw {
	case "Auction", "AuctionWithBIN":
		return model.ListingAuction
	case "FixedPrice", "StoreInventory":
		return model.ListingFixedPrice
	default:
		return ""
	}
}

// first unwraps the Finding API's one-element array convention.
func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
