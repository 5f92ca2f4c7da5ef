// Package rates provides a best-effort currency exchange rate lookup.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Client fetches exchange rates from an open rates endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client with a default HTTP timeout.
func New() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Rate returns how many units of the target currency one unit of the base
// currency buys. Callers treat failures as "estimate unavailable".
func (c *Client) Rate(ctx context.Context, base, target string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+base, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode rates: %w", err)
	}

	rate, ok := payload.Rates[target]
	if !ok {
		return 0, fmt.Errorf("no rate for %s", target)
	}
	return rate, nil
}
