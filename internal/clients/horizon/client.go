// Package horizon is the HTTP client for the venue's public API: account
// snapshots and per-anchor order books.
package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/modules/orderbook"
)

const defaultTimeout = 15 * time.Second

// Client talks to one horizon endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a client for baseURL.
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("client", "horizon").Logger(),
	}
}

// AccountBalance is one balance line of an account snapshot.
type AccountBalance struct {
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
	Balance     string `json:"balance"`
	Buying      string `json:"buying_liabilities"`
	Selling     string `json:"selling_liabilities"`
}

// Native reports whether the balance holds the venue base asset.
func (b AccountBalance) Native() bool { return b.AssetType == "native" }

// Amounts parses the balance figures.
func (b AccountBalance) Amounts() (amount, buying, selling float64, err error) {
	if amount, err = strconv.ParseFloat(b.Balance, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("bad balance amount %q: %w", b.Balance, err)
	}
	if b.Buying != "" {
		if buying, err = strconv.ParseFloat(b.Buying, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("bad buying liabilities %q: %w", b.Buying, err)
		}
	}
	if b.Selling != "" {
		if selling, err = strconv.ParseFloat(b.Selling, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("bad selling liabilities %q: %w", b.Selling, err)
		}
	}
	return amount, buying, selling, nil
}

// Account fetches the balance lines of accountID.
func (c *Client) Account(ctx context.Context, accountID string) ([]AccountBalance, error) {
	var resp struct {
		Balances []AccountBalance `json:"balances"`
	}
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch account %s: %w", accountID, err)
	}
	return resp.Balances, nil
}

type rawLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// OrderBook fetches the ladder for one anchor's issuance of an asset,
// quoted against the venue base asset.
func (c *Client) OrderBook(ctx context.Context, code, issuer string, limit int) (orderbook.RawBook, error) {
	params := url.Values{
		"selling_asset_type":   {assetType(code)},
		"selling_asset_code":   {code},
		"selling_asset_issuer": {issuer},
		"buying_asset_type":    {"native"},
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Bids []rawLevel `json:"bids"`
		Asks []rawLevel `json:"asks"`
	}
	if err := c.get(ctx, "/order_book", params, &resp); err != nil {
		return orderbook.RawBook{}, fmt.Errorf("failed to fetch order book %s:%s: %w", code, issuer, err)
	}

	book := orderbook.RawBook{}
	var err error
	if book.Bids, err = parseLevels(resp.Bids); err != nil {
		return orderbook.RawBook{}, err
	}
	if book.Asks, err = parseLevels(resp.Asks); err != nil {
		return orderbook.RawBook{}, err
	}
	return book, nil
}

func parseLevels(levels []rawLevel) ([]orderbook.RawOffer, error) {
	out := make([]orderbook.RawOffer, len(levels))
	for i, lv := range levels {
		price, err := strconv.ParseFloat(lv.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("bad offer price %q: %w", lv.Price, err)
		}
		amount, err := strconv.ParseFloat(lv.Amount, 64)
		if err != nil {
			return nil, fmt.Errorf("bad offer amount %q: %w", lv.Amount, err)
		}
		out[i] = orderbook.RawOffer{Price: price, Amount: amount}
	}
	return out, nil
}

// assetType maps an asset code to the venue's wire type.
func assetType(code string) string {
	if len(code) <= 4 {
		return "credit_alphanum4"
	}
	return "credit_alphanum12"
}

// BookSource adapts one anchor issuance into an orderbook.OfferSource.
type BookSource struct {
	client *Client
	code   string
	issuer string
	limit  int
}

// Source returns the offer source polling code:issuer's ladder.
func (c *Client) Source(code, issuer string, limit int) *BookSource {
	return &BookSource{client: c, code: code, issuer: issuer, limit: limit}
}

// Offers fetches the current ladder.
func (s *BookSource) Offers(ctx context.Context) (orderbook.RawBook, error) {
	return s.client.OrderBook(ctx, s.code, s.issuer, s.limit)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
