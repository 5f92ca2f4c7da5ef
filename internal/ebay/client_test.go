package ebay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"ebay_tracker/internal/model"
)

const tokenJSON = `{"access_token":"test-token","expires_in":7200,"token_type":"Application Access Token"}`

// mockTransport routes requests to canned responses by endpoint.
type mockTransport struct {
	tokenBody     string
	tokenStatus   int
	browseBody    string
	browseStatus  int
	findingBody   string
	findingStatus int

	tokenCalls   int
	browseCalls  int
	findingCalls int

	lastBrowseReq *http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	switch {
	case strings.Contains(req.URL.Path, "oauth2/token"):
		m.tokenCalls++
		return respond(m.tokenStatus, m.tokenBody), nil
	case strings.Contains(req.URL.Path, "item_summary/search"):
		m.browseCalls++
		m.lastBrowseReq = req
		return respond(m.browseStatus, m.browseBody), nil
	case req.URL.Host == "svcs.ebay.com":
		m.findingCalls++
		return respond(m.findingStatus, m.findingBody), nil
	}
	return nil, fmt.Errorf("unexpected request: %s", req.URL)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(transport *mockTransport, filters Filters) *Client {
	return New(Options{
		AppID:      "app-id",
		CertID:     "cert-id",
		SiteID:     "EBAY_UK",
		MaxResults: 50,
		Filters:    filters,
	}, transport, testLogger())
}

func TestSearchBrowse(t *testing.T) {
	transport := &mockTransport{
		tokenBody:    tokenJSON,
		tokenStatus:  200,
		browseBody:   loadFixture(t, "../../testdata/browse_search.json"),
		browseStatus: 200,
	}
	c := newTestClient(transport, Filters{LocatedIn: []string{"GB"}})

	got := c.Search(context.Background(), "joy division cassette")
	if len(got) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(got))
	}
	if transport.findingCalls != 0 {
		t.Errorf("expected no finding api calls, got %d", transport.findingCalls)
	}

	end := time.Date(2026, 9, 3, 18, 30, 0, 0, time.UTC)
	want := model.Listing{
		ItemID:           "v1|305123456789|0",
		Title:            "Joy Division Unknown Pleasures Cassette Tape 1979 Factory",
		Price:            "100.00",
		Currency:         "GBP",
		URL:              "https://www.ebay.co.uk/itm/305123456789",
		ImageURL:         "https://i.ebayimg.com/images/g/abc/s-l500.jpg",
		Condition:        "Used",
		Seller:           "vinyl_cellar",
		Keyword:          "joy division cassette",
		ListingType:      model.ListingAuction,
		EndTime:          &end,
		BidCount:         "7",
		ShippingCost:     "5.00",
		ShippingCurrency: "GBP",
	}
	ignoreDate := cmpopts.IgnoreFields(model.Listing{}, "ListingDate")
	if diff := cmp.Diff(want, got[0], ignoreDate); diff != "" {
		t.Errorf("first listing mismatch (-want +got):\n%s", diff)
	}
	if got[0].ListingDate == "" {
		t.Error("expected a listing date to be filled in")
	}
	if got[1].ListingType != model.ListingFixedPrice {
		t.Errorf("expected fixed price listing, got %q", got[1].ListingType)
	}
}

func TestSearchBrowseMalformedItemIsSkipped(t *testing.T) {
	// One element with the wrong type for a field must not poison the
	// rest of the batch or trigger the finding fallback.
	body := `{"itemSummaries":[
		{"itemId":"v1|1|0","title":12345,"itemWebUrl":"https://www.ebay.com/itm/1"},
		{"itemId":"v1|2|0","title":"Joy Division Closer Cassette","itemWebUrl":"https://www.ebay.com/itm/2"}
	]}`
	transport := &mockTransport{
		tokenBody:    tokenJSON,
		tokenStatus:  200,
		browseBody:   body,
		browseStatus: 200,
	}
	c := newTestClient(transport, Filters{})

	got := c.Search(context.Background(), "joy division cassette")
	if len(got) != 1 {
		t.Fatalf("expected the valid item to survive, got %d listings", len(got))
	}
	if got[0].ItemID != "v1|2|0" {
		t.Errorf("unexpected surviving item %q", got[0].ItemID)
	}
	if transport.findingCalls != 0 {
		t.Errorf("expected no finding fallback, got %d calls", transport.findingCalls)
	}
}

func TestSearchFindingMalformedItemIsSkipped(t *testing.T) {
	body := `{"findItemsAdvancedResponse":[{"ack":["Success"],"searchResult":[{"item":[
		{"itemId":["1"],"title":[12345],"viewItemURL":["https://www.ebay.com/itm/1"]},
		{"itemId":["2"],"title":["Joy Division Closer Cassette"],"viewItemURL":["https://www.ebay.com/itm/2"]}
	]}]}]}`
	transport := &mockTransport{
		tokenBody:     `{"error":"invalid_client"}`,
		tokenStatus:   401,
		findingBody:   body,
		findingStatus: 200,
	}
	c := newTestClient(transport, Filters{})

	got := c.Search(context.Background(), "joy division cassette")
	if len(got) != 1 {
		t.Fatalf("expected the valid item to survive, got %d listings", len(got))
	}
	if got[0].ItemID != "2" {
		t.Errorf("unexpected surviving item %q", got[0].ItemID)
	}
}

func TestSearchBrowseRequest(t *testing.T) {
	transport := &mockTransport{
		tokenBody:    tokenJSON,
		tokenStatus:  200,
		browseBody:   `{"itemSummaries":[]}`,
		browseStatus: 200,
	}
	c := newTestClient(transport, Filters{
		MinPrice:     "5",
		MaxPrice:     "200",
		Conditions:   []string{"Used", "Very Good"},
		LocatedIn:    []string{"GB"},
		PostalCode:   "M1 1AA",
		SearchRadius: "50",
	})

	c.Search(context.Background(), "cassette")

	req := transport.lastBrowseReq
	if req == nil {
		t.Fatal("expected a browse request")
	}
	q := req.URL.Query()
	if got := q.Get("q"); got != "cassette" {
		t.Errorf("q = %q", got)
	}
	if got := q.Get("sort"); got != "newlyListed" {
		t.Errorf("sort = %q", got)
	}
	if got := q.Get("limit"); got != "50" {
		t.Errorf("limit = %q", got)
	}
	wantFilter := "price:[5..],price:[..200],conditions:{Used|Very Good},itemLocationCountry:GB"
	if got := q.Get("filter"); got != wantFilter {
		t.Errorf("filter = %q, want %q", got, wantFilter)
	}
	if got := q.Get("buyerPostalCode"); got != "M1 1AA" {
		t.Errorf("buyerPostalCode = %q", got)
	}
	if got := q.Get("searchRadius"); got != "50" {
		t.Errorf("searchRadius = %q", got)
	}
	if got := req.Header.Get("X-EBAY-C-MARKETPLACE-ID"); got != "EBAY_GB" {
		t.Errorf("marketplace header = %q", got)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("authorization header = %q", got)
	}
}

func TestTokenCaching(t *testing.T) {
	transport := &mockTransport{
		tokenBody:    tokenJSON,
		tokenStatus:  200,
		browseBody:   `{"itemSummaries":[]}`,
		browseStatus: 200,
	}
	c := newTestClient(transport, Filters{})

	ctx := context.Background()
	c.Search(ctx, "first")
	c.Search(ctx, "second")

	if transport.tokenCalls != 1 {
		t.Errorf("expected 1 token exchange, got %d", transport.tokenCalls)
	}
	if transport.browseCalls != 2 {
		t.Errorf("expected 2 browse calls, got %d", transport.browseCalls)
	}
}

func TestSearchFallsBackToFinding(t *testing.T) {
	transport := &mockTransport{
		tokenBody:     `{"error":"invalid_client"}`,
		tokenStatus:   401,
		findingBody:   loadFixture(t, "../../testdata/finding_search.json"),
		findingStatus: 200,
	}
	c := newTestClient(transport, Filters{
		Exclude:   []string{"box set"},
		LocatedIn: []string{"GB"},
	})

	got := c.Search(context.Background(), "joy division cassette")
	if transport.findingCalls != 1 {
		t.Fatalf("expected 1 finding call, got %d", transport.findingCalls)
	}

	// The fixture carries three items: one good, one excluded by title,
	// one located outside the requested countries.
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}

	end := time.Date(2026, 9, 3, 18, 30, 0, 0, time.UTC)
	want := model.Listing{
		ItemID:           "305123456789",
		Title:            "Joy Division Unknown Pleasures Cassette Tape 1979 Factory",
		Price:            "100.0",
		Currency:         "GBP",
		URL:              "https://www.ebay.co.uk/itm/305123456789",
		ImageURL:         "https://i.ebayimg.com/thumbs/images/g/abc/s-l140.jpg",
		Condition:        "Used",
		Seller:           "vinyl_cellar",
		ListingDate:      "2026-08-27 18:30",
		Keyword:          "joy division cassette",
		ListingType:      model.ListingAuction,
		EndTime:          &end,
		BidCount:         "7",
		ShippingCost:     "5.0",
		ShippingCurrency: "GBP",
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchBothAPIsFail(t *testing.T) {
	transport := &mockTransport{
		tokenBody:     `{"error":"invalid_client"}`,
		tokenStatus:   401,
		findingBody:   "service unavailable",
		findingStatus: 503,
	}
	c := newTestClient(transport, Filters{})

	got := c.Search(context.Background(), "cassette")
	if got != nil {
		t.Errorf("expected nil result, got %d listings", len(got))
	}
}

func TestSearchFindingFailureAck(t *testing.T) {
	transport := &mockTransport{
		tokenBody:     `{}`,
		tokenStatus:   200,
		findingBody:   `{"findItemsAdvancedResponse":[{"ack":["Failure"]}]}`,
		findingStatus: 200,
	}
	c := newTestClient(transport, Filters{})

	got := c.Search(context.Background(), "cassette")
	if len(got) != 0 {
		t.Errorf("expected no listings on failure ack, got %d", len(got))
	}
}

func TestMarketplace(t *testing.T) {
	tests := []struct {
		siteID string
		want   string
	}{
		{"EBAY_UK", "EBAY_GB"},
		{"EBAY_US", "EBAY_US"},
		{"EBAY_DE", "EBAY_DE"},
		{"", "EBAY_US"},
		{"EBAY_NOPE", "EBAY_US"},
	}
	for _, tt := range tests {
		c := New(Options{SiteID: tt.siteID}, &mockTransport{}, testLogger())
		if got := c.marketplace(); got != tt.want {
			t.Errorf("marketplace(%q) = %q, want %q", tt.siteID, got, tt.want)
		}
	}
}
