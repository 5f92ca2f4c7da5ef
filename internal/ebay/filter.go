package ebay

import "strings"

// Filters is the search filter set derived from configuration. It is
// applied identically by both API integrations so that they produce
// equivalent filtered output.
type Filters struct {
	// Exclude holds lower-cased substrings; a listing whose title
	// contains any of them (case-folded, literal match) is dropped.
	Exclude []string

	// Price bounds as decimal strings, passed through to the API
	// filter syntax. Empty means unbounded.
	MinPrice string
	MaxPrice string

	// Conditions restricts results to the given condition names.
	Conditions []string

	// LocationCountry is the country code sent to the Browse API's
	// itemLocationCountry filter. When empty, the first LocatedIn code
	// is used.
	LocationCountry string

	// LocatedIn holds upper-cased location codes for the strict
	// post-search location filter. Empty disables location filtering.
	LocatedIn []string

	// ShipsTo restricts Finding API results to items available to the
	// given country.
	ShipsTo string

	// PostalCode and SearchRadius constrain results by proximity.
	PostalCode   string
	SearchRadius string
}

// excludesTitle reports whether a title contains any exclusion substring.
func (f *Filters) excludesTitle(title string) bool {
	if len(f.Exclude) == 0 {
		return false
	}
	lower := strings.ToLower(title)
	for _, word := range f.Exclude {
		if word != "" && strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// locationAliases maps a location code to country-name spellings that
// satisfy it when they appear in an item's location string.
var locationAliases = map[string][]string{
	"GB": {"UNITED KINGDOM", "UK"},
	"US": {"UNITED STATES", "USA"},
}

// marketplaceCountry maps Browse API marketplace IDs to the country whose
// listings they can be trusted to carry. An item with no location data is
// kept only when the active marketplace's country is among the requested
// codes; the eBay APIs do not always honor their own location filters, so
// everything else is dropped.
var marketplaceCountry = map[string]string{
	"EBAY_US": "US",
	"EBAY_GB": "GB",
	"EBAY_DE": "DE",
	"EBAY_AU": "AU",
	"EBAY_AT": "AT",
	"EBAY_CA": "CA",
	"EBAY_FR": "FR",
	"EBAY_IT": "IT",
	"EBAY_ES": "ES",
}

// locationAllowed reports whether an item may pass the location filter.
// The location argument is whatever combined location text the API payload
// exposed; marketplaceID identifies the marketplace the search ran against.
func (f *Filters) locationAllowed(location, marketplaceID string) bool {
	if len(f.LocatedIn) == 0 {
		return true
	}

	loc := strings.ToUpper(strings.TrimSpace(location))
	if loc == "" {
		country := marketplaceCountry[marketplaceID]
		if country == "" {
			return false
		}
		for _, code := range f.LocatedIn {
			if code == country {
				return true
			}
		}
		return false
	}

	for _, code := range f.LocatedIn {
		if strings.Contains(loc, code) {
			return true
		}
		for _, alias := range locationAliases[code] {
			if strings.Contains(loc, alias) {
				return true
			}
		}
	}
	return false
}
