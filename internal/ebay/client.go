// Package ebay implements the marketplace search client. A keyword search
// is attempted against the Browse API first and falls back to the legacy
// Finding API when authentication or the request itself fails. Both paths
// produce the same normalized listings, filtered by the shared exclusion
// and location rules.
package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ebay_tracker/internal/model"
)

const (
	findingAPIURL = "https://svcs.ebay.com/services/search/FindingService/v1"
	browseAPIURL  = "https://api.ebay.com/buy/browse/v1"
	oauthTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"

	oauthScope = "https://api.ebay.com/oauth/api_scope"

	browseMaxResults  = 200
	findingMaxResults = 100
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	AppID      string
	CertID     string
	SiteID     string
	MaxResults int
	Filters    Filters
}

// Client searches eBay for listings matching a keyword.
type Client struct {
	appID      string
	certID     string
	siteID     string
	maxResults int
	filters    Filters
	client     HTTPClient
	log        *slog.Logger

	// OAuth token for the Browse API, cached until shortly before expiry.
	token       string
	tokenExpiry time.Time
}

// New creates a Client with the given HTTP client.
func New(opts Options, client HTTPClient, log *slog.Logger) *Client {
	return &Client{
		appID:      opts.AppID,
		certID:     opts.CertID,
		siteID:     opts.SiteID,
		maxResults: opts.MaxResults,
		filters:    opts.Filters,
		client:     client,
		log:        log,
	}
}

// Search returns filtered listings for a keyword. It never fails: a Browse
// API problem falls back to the Finding API, and a Finding API problem
// yields an empty result so the caller can continue with other keywords.
func (c *Client) Search(ctx context.Context, keyword string) []model.Listing {
	items, err := c.searchBrowse(ctx, keyword)
	if err == nil {
		return items
	}
	c.log.Warn("browse search failed, falling back to finding api", "keyword", keyword, "error", err)

	items, err = c.searchFinding(ctx, keyword)
	if err != nil {
		c.log.Error("finding search failed", "keyword", keyword, "error", err)
		return nil
	}
	return items
}

// accessToken returns a cached OAuth token, requesting a new one via the
// client-credentials exchange when absent or within 60s of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", oauthScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthTokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.appID + ":" + c.certID))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+credentials)

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn-60) * time.Second)
	return c.token, nil
}

// marketplace maps the configured site ID to a Browse API marketplace ID.
func (c *Client) marketplace() string {
	if id, ok := marketplaceIDs[c.siteID]; ok {
		return id
	}
	return "EBAY_US"
}

var marketplaceIDs = map[string]string{
	"EBAY_US": "EBAY_US",
	"EBAY_UK": "EBAY_GB",
	"EBAY_DE": "EBAY_DE",
	"EBAY_AU": "EBAY_AU",
	"EBAY_AT": "EBAY_AT",
	"EBAY_CA": "EBAY_CA",
	"EBAY_FR": "EBAY_FR",
	"EBAY_IT": "EBAY_IT",
	"EBAY_ES": "EBAY_ES",
}

// do executes a request and returns the response body for 2xx statuses.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
