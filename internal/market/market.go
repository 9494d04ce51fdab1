package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	DefaultSymbol  = "BTCUSDT"
)

// ErrUnavailable is returned when no price can be obtained.
var ErrUnavailable = errors.New("price unavailable")

// PriceSource supplies the latest market price of BTC in USD.
type PriceSource interface {
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
}

// StaticPrice always reports the same price. A non-positive value reports
// ErrUnavailable.
type StaticPrice decimal.Decimal

// CurrentPrice implements PriceSource.
func (p StaticPrice) CurrentPrice(context.Context) (decimal.Decimal, error) {
	d := decimal.Decimal(p)
	if !d.IsPositive() {
		return decimal.Zero, ErrUnavailable
	}
	return d, nil
}

// TickerClient reads the last traded price from the Binance ticker endpoint.
type TickerClient struct {
	baseURL string
	symbol  string
	http    *http.Client
}

// NewTickerClient builds a ticker client. Empty arguments use the defaults.
func NewTickerClient(baseURL, symbol string) *TickerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &TickerClient{
		baseURL: baseURL,
		symbol:  symbol,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// CurrentPrice implements PriceSource.
func (c *TickerClient) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(c.symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: ticker status %d", ErrUnavailable, resp.StatusCode)
	}

	var body tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode ticker: %w", err)
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ticker price %q: %w", body.Price, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, ErrUnavailable
	}
	return price, nil
}
