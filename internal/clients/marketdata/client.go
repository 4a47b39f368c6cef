// Package marketdata fetches external reference-currency prices for
// globally quoted assets.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

// Client talks to the market data endpoint.
type Client struct {
	baseURL  string
	currency string
	http     *http.Client
	log      zerolog.Logger
}

// New creates a client returning prices in currency.
func New(baseURL, currency string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		currency: currency,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      log.With().Str("client", "marketdata").Logger(),
	}
}

// Prices returns the current price per asset code. Codes the provider does
// not know are absent from the result, not an error.
func (c *Client) Prices(ctx context.Context, codes []string) (map[string]float64, error) {
	if len(codes) == 0 {
		return map[string]float64{}, nil
	}

	params := url.Values{
		"symbols":  {strings.Join(codes, ",")},
		"currency": {c.currency},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/prices?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data returned status %d", resp.StatusCode)
	}

	var prices map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&prices); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}
	return prices, nil
}
