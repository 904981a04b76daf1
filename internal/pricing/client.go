// Package pricing fetches, caches and refreshes market price snapshots
// for divination cards, one snapshot per league.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

const (
	defaultBaseURL = "https://poe.ninja"
	rateLimitDelay = 500 * time.Millisecond
	requestTimeout = 30 * time.Second
)

// PriceResponse is the remote pricing service's answer for one league.
// The endpoint is idempotent and safe to retry.
type PriceResponse struct {
	FetchedAt time.Time         `json:"fetchedAt"`
	Exchange  models.PriceTable `json:"exchange"`
	Stash     models.PriceTable `json:"stash"`
}

// Fetcher retrieves current prices for a league. Satisfied by Client;
// tests substitute fakes.
type Fetcher interface {
	FetchPrices(ctx context.Context, game models.Game, league string) (*PriceResponse, error)
}

// ClientConfig configures the remote pricing client.
type ClientConfig struct {
	// BaseURL is the pricing service base URL.
	BaseURL string

	// RequestTimeout is the HTTP request timeout.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// RateLimitDelay is the minimum spacing between requests.
	// Default: 500 milliseconds
	RateLimitDelay time.Duration
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        defaultBaseURL,
		RequestTimeout: requestTimeout,
		RateLimitDelay: rateLimitDelay,
	}
}

// Client is a rate-limited HTTP client for the remote pricing service.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
}

// NewClient creates a new pricing client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = requestTimeout
	}
	if config.RateLimitDelay <= 0 {
		config.RateLimitDelay = rateLimitDelay
	}

	return &Client{
		httpClient:  &http.Client{Timeout: config.RequestTimeout},
		baseURL:     config.BaseURL,
		rateLimiter: rate.NewLimiter(rate.Every(config.RateLimitDelay), 1),
	}
}

// FetchPrices retrieves the current card prices for one league.
func (c *Client) FetchPrices(ctx context.Context, game models.Game, league string) (*PriceResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/soothsayer/prices?game=%s&league=%s",
		c.baseURL, url.QueryEscape(string(game)), url.QueryEscape(league))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Soothsayer/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request prices for %s: %w", league, err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // response fully consumed
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price service returned status %d for %s", resp.StatusCode, league)
	}

	var prices PriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}
	if prices.FetchedAt.IsZero() {
		prices.FetchedAt = time.Now().UTC()
	}
	return &prices, nil
}
