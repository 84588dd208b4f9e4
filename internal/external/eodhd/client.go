// Package eodhd implements the backup market-data provider client
// (EOD Historical Data). It serves everything except split history.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/pkg/httputil"
	"github.com/mzurek/divtrack/pkg/logger"
)

const defaultBaseURL = "https://eodhd.com/api"

// Client talks to the EODHD REST API
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiToken   string
}

// NewClient creates a new EODHD client
func NewClient(httpClient *httputil.Client, apiToken string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("provider", market.ProviderBackup),
		baseURL:    defaultBaseURL,
		apiToken:   apiToken,
	}
}

// NewClientWithBaseURL creates a client against a custom base URL (for testing)
func NewClientWithBaseURL(httpClient *httputil.Client, apiToken, baseURL string, log *logger.Logger) *Client {
	c := NewClient(httpClient, apiToken, log)
	c.baseURL = baseURL
	return c
}

// ID returns the provider role id
func (c *Client) ID() string {
	return market.ProviderBackup
}

// symbol maps a plain US ticker to the EODHD exchange-qualified form
func symbol(ticker string) string {
	return ticker + ".US"
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiToken)
	params.Set("fmt", "json")

	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

type fundamentalsResponse struct {
	General struct {
		Name    string `json:"Name"`
		IPODate string `json:"IPODate"`
	} `json:"General"`
}

// Profile fetches instrument name and inception from the fundamentals
// endpoint. EODHD carries no last-dividend shortcut; the router promotes
// that field from another provider when needed.
func (c *Client) Profile(ctx context.Context, ticker string) (*market.Profile, error) {
	var resp fundamentalsResponse
	if err := c.getJSON(ctx, "/fundamentals/"+url.PathEscape(symbol(ticker)), nil, &resp); err != nil {
		return nil, err
	}
	if resp.General.Name == "" {
		return nil, fmt.Errorf("empty fundamentals response for %s", ticker)
	}

	profile := &market.Profile{
		Ticker: ticker,
		Name:   resp.General.Name,
	}
	if ipo, err := time.Parse("2006-01-02", resp.General.IPODate); err == nil {
		profile.IPODate = &ipo
	}

	return profile, nil
}

type realTimeResponse struct {
	Close json.Number `json:"close"`
}

// Quote fetches the current price
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	var resp realTimeResponse
	if err := c.getJSON(ctx, "/real-time/"+url.PathEscape(symbol(ticker)), nil, &resp); err != nil {
		return 0, err
	}

	price, err := resp.Close.Float64()
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("no quote for %s", ticker)
	}
	return price, nil
}

type eodBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// eodHistory fetches one period (d, w, m) of the EOD endpoint
func (c *Client) eodHistory(ctx context.Context, period, ticker string, from time.Time) ([]market.PriceRow, error) {
	params := url.Values{}
	params.Set("period", period)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("order", "a")

	var bars []eodBar
	if err := c.getJSON(ctx, "/eod/"+url.PathEscape(symbol(ticker)), params, &bars); err != nil {
		return nil, err
	}

	rows := make([]market.PriceRow, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil || bar.Close <= 0 {
			continue
		}
		rows = append(rows, market.PriceRow{
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"period": period,
		"count":  len(rows),
	}).Debug("Fetched price history")
	return rows, nil
}

// MonthlyPrices fetches monthly closes going back the given number of years
func (c *Client) MonthlyPrices(ctx context.Context, ticker string, years int) ([]market.PriceRow, error) {
	return c.eodHistory(ctx, "m", ticker, time.Now().UTC().AddDate(-years, 0, 0))
}

// WeeklyPrices fetches weekly closes going back the given number of years
func (c *Client) WeeklyPrices(ctx context.Context, ticker string, years int) ([]market.PriceRow, error) {
	return c.eodHistory(ctx, "w", ticker, time.Now().UTC().AddDate(-years, 0, 0))
}

// DailyPrices fetches daily closes going back the given number of days
func (c *Client) DailyPrices(ctx context.Context, ticker string, days int) ([]market.PriceRow, error) {
	return c.eodHistory(ctx, "d", ticker, time.Now().UTC().AddDate(0, 0, -days))
}

type divEntry struct {
	Date        string  `json:"date"`
	PaymentDate string  `json:"paymentDate"`
	Value       float64 `json:"value"`
}

// Dividends fetches dividend history. An empty response is not an error.
func (c *Client) Dividends(ctx context.Context, ticker string, years int, since time.Time) ([]market.DividendRow, error) {
	cutoff := time.Now().UTC().AddDate(-years, 0, 0)
	if since.After(cutoff) {
		cutoff = since
	}

	params := url.Values{}
	params.Set("from", cutoff.Format("2006-01-02"))

	var entries []divEntry
	if err := c.getJSON(ctx, "/div/"+url.PathEscape(symbol(ticker)), params, &entries); err != nil {
		return nil, err
	}

	rows := make([]market.DividendRow, 0, len(entries))
	for _, e := range entries {
		exDate, exErr := time.Parse("2006-01-02", e.Date)
		payDate, payErr := time.Parse("2006-01-02", e.PaymentDate)
		if payErr != nil {
			if exErr != nil {
				continue
			}
			payDate = exDate
		}
		if e.Value <= 0 || payDate.Before(cutoff) {
			continue
		}

		row := market.DividendRow{PaymentDate: payDate, Amount: e.Value}
		if exErr == nil {
			ex := exDate
			row.ExDate = &ex
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].PaymentDate.Before(rows[j].PaymentDate) })
	return rows, nil
}

// Splits is not served by this provider
func (c *Client) Splits(ctx context.Context, ticker string) ([]market.SplitRow, error) {
	return nil, market.ErrUnsupported
}
