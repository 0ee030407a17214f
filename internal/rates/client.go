// Package rates fetches exchange-rate tables from an exchangerate-api.com
// compatible endpoint.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
)

// DefaultBaseURL is the v6 API root; the key and the display currency are
// appended as path segments.
const DefaultBaseURL = "https://v6.exchangerate-api.com/v6"

var (
	ErrMissingAPIKey = errors.New("missing exchange-rate API key")
	ErrUpstream      = errors.New("exchange-rate API error")
)

// Client fetches the latest rates relative to a display currency. It does
// not cache and does not retry; concurrent requests for the same display
// currency share one upstream call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	group      singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// NewClient builds a client. timeout bounds each upstream request.
func NewClient(apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// latestResponse is the subset of the API payload we read.
type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// Fetch returns the rate table for display.
func (c *Client) Fetch(ctx context.Context, display core.Currency) (core.RateTable, error) {
	ch := c.group.DoChan(string(display), func() (any, error) {
		// Detached from the first caller's cancellation; the http.Client
		// timeout still bounds it.
		return c.fetch(context.WithoutCancel(ctx), display)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Each caller gets its own copy of the shared table.
		return res.Val.(core.RateTable).Clone(), nil
	}
}

func (c *Client) fetch(ctx context.Context, display core.Currency) (core.RateTable, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(c.apiKey) + "/latest/" + url.PathEscape(string(display))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", display, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rates response: %w", err)
	}

	var payload latestResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && payload.ErrorType != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, payload.ErrorType)
		}
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, decodeErr)
	}
	if payload.Result == "error" {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, payload.ErrorType)
	}
	if len(payload.ConversionRates) == 0 {
		return nil, fmt.Errorf("%w: response has no conversion_rates", ErrUpstream)
	}

	table := make(core.RateTable, len(payload.ConversionRates))
	for code, rate := range payload.ConversionRates {
		table[core.Currency(strings.ToUpper(code))] = rate
	}

	slog.DebugContext(ctx, "Exchange rates fetched",
		"display_currency", display,
		"base_code", payload.BaseCode,
		"rates", len(table),
		"duration_ms", time.Since(start).Milliseconds())

	return table, nil
}
