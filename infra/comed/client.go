// Package comed fetches real-time electricity prices from the ComEd hourly
// pricing API.
package comed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/smart-ev/chargectl/core/model"
	"github.com/smart-ev/chargectl/core/pricing"
	"github.com/smart-ev/chargectl/infra/logger"
)

// DefaultFeedURL is the public 5-minute price feed.
const DefaultFeedURL = "https://hourlypricing.comed.com/api?type=5minutefeed"

// Config defines the price feed endpoint and request bounds.
type Config struct {
	FeedURL        string `json:"feed_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults fills the public endpoint and a 10 second request timeout.
func (c *Config) SetDefaults() {
	if c.FeedURL == "" {
		c.FeedURL = DefaultFeedURL
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks the request bounds.
func (c Config) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative, got %d", c.TimeoutSeconds)
	}
	return nil
}

// feedEntry mirrors one element of the feed response. The feed encodes every
// field as a string; unknown fields are ignored.
type feedEntry struct {
	MillisUTC string `json:"millisUTC"`
	Price     string `json:"price"`
}

// Client fetches prices over HTTP. It never retries: a failed fetch is
// reported to the caller, which skips the cycle and tries again on the next
// tick.
type Client struct {
	http *http.Client
	url  string
	log  logger.Logger
}

var _ pricing.Source = (*Client)(nil)

// NewClient builds a Client from cfg, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	url := cfg.FeedURL
	if url == "" {
		url = DefaultFeedURL
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		url:  url,
		log:  logger.New("comed"),
	}
}

// Fetch returns the most recent usable price. The feed lists entries most
// recent first.
func (c *Client) Fetch(ctx context.Context) (model.PriceReading, error) {
	series, err := c.FetchSeries(ctx)
	if err != nil {
		return model.PriceReading{}, err
	}
	return series[0], nil
}

// FetchSeries returns the recent price series, most recent first. Entries
// that cannot be parsed are skipped; the series is never empty on success.
func (c *Client) FetchSeries(ctx context.Context) ([]model.PriceReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", pricing.ErrUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pricing.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", pricing.ErrUnavailable, resp.StatusCode)
	}

	var entries []feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", pricing.ErrUnavailable, err)
	}

	readings := make([]model.PriceReading, 0, len(entries))
	for _, e := range entries {
		reading, err := e.toReading()
		if err != nil {
			c.log.Warnf("skipping feed entry: %v", err)
			continue
		}
		readings = append(readings, reading)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: feed returned no usable prices", pricing.ErrUnavailable)
	}
	c.log.Debugf("fetched %d prices, current %.2f¢/kWh (%s)", len(readings), readings[0].Cents, readings[0].Tier())
	return readings, nil
}

func (e feedEntry) toReading() (model.PriceReading, error) {
	cents, err := strconv.ParseFloat(e.Price, 64)
	if err != nil {
		return model.PriceReading{}, fmt.Errorf("price %q: %v", e.Price, err)
	}
	if math.IsNaN(cents) || math.IsInf(cents, 0) {
		return model.PriceReading{}, fmt.Errorf("price %q is not finite", e.Price)
	}
	observed := time.Now()
	if millis, err := strconv.ParseInt(e.MillisUTC, 10, 64); err == nil {
		observed = time.UnixMilli(millis)
	}
	return model.PriceReading{Cents: cents, ObservedAt: observed}, nil
}
