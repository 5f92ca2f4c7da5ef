package rates

import (
	"context"
	"testing"

	"github.com/h2non/gock"
)

func TestRate(t *testing.T) {
	defer gock.Off()

	c := New()
	gock.InterceptClient(c.client)

	gock.New("https://api.exchangerate-api.com").
		Get("/v4/latest/GBP").
		Reply(200).
		JSON(map[string]any{
			"base":  "GBP",
			"rates": map[string]float64{"RUB": 95.0, "USD": 1.27},
		})

	got, err := c.Rate(context.Background(), "GBP", "RUB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 95.0 {
		t.Errorf("Rate = %v, want 95", got)
	}
}

func TestRateMissingTarget(t *testing.T) {
	defer gock.Off()

	c := New()
	gock.InterceptClient(c.client)

	gock.New("https://api.exchangerate-api.com").
		Get("/v4/latest/GBP").
		Reply(200).
		JSON(map[string]any{"rates": map[string]float64{"USD": 1.27}})

	if _, err := c.Rate(context.Background(), "GBP", "RUB"); err == nil {
		t.Fatal("expected error for missing target currency")
	}
}

func TestRateHTTPError(t *testing.T) {
	defer gock.Off()

	c := New()
	gock.InterceptClient(c.client)

	gock.New("https://api.exchangerate-api.com").
		Get("/v4/latest/GBP").
		Reply(500)

	if _, err := c.Rate(context.Background(), "GBP", "RUB"); err == nil {
		t.Fatal("expected error for server failure")
	}
}

func TestRateBadPayload(t *testing.T) {
	defer gock.Off()

	c := New()
	gock.InterceptClient(c.client)

	gock.New("https://api.exchangerate-api.com").
		Get("/v4/latest/GBP").
		Reply(200).
		BodyString("not json")

	if _, err := c.Rate(context.Background(), "GBP", "RUB"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
