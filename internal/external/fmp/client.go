// Package fmp implements the primary market-data provider client
// (Financial Modeling Prep).
package fmp

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

const defaultBaseURL = "https://financialmodelingprep.com/api/v3"

// Client talks to the FMP REST API
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates a new FMP client
func NewClient(httpClient *httputil.Client, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("provider", market.ProviderPrimary),
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
}

// NewClientWithBaseURL creates a client against a custom base URL (for testing)
func NewClientWithBaseURL(httpClient *httputil.Client, apiKey, baseURL string, log *logger.Logger) *Client {
	c := NewClient(httpClient, apiKey, log)
	c.baseURL = baseURL
	return c
}

// ID returns the provider role id
func (c *Client) ID() string {
	return market.ProviderPrimary
}

// getJSON fetches a path and decodes the JSON body into dest
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

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

type profileDoc struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	IPODate     string  `json:"ipoDate"`
	Price       float64 `json:"price"`
	LastDiv     float64 `json:"lastDiv"`
}

// Profile fetches basic instrument information
func (c *Client) Profile(ctx context.Context, ticker string) (*market.Profile, error) {
	var docs []profileDoc
	if err := c.getJSON(ctx, "/profile/"+url.PathEscape(ticker), nil, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("empty profile response for %s", ticker)
	}

	doc := docs[0]
	profile := &market.Profile{
		Ticker: ticker,
		Name:   doc.CompanyName,
	}
	if doc.Price > 0 {
		price := doc.Price
		profile.Price = &price
	}
	if doc.LastDiv > 0 {
		lastDiv := doc.LastDiv
		profile.LastDividend = &lastDiv
	}
	if ipo, err := time.Parse("2006-01-02", doc.IPODate); err == nil {
		profile.IPODate = &ipo
	}

	return profile, nil
}

type quoteDoc struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Quote fetches the current price
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	var docs []quoteDoc
	if err := c.getJSON(ctx, "/quote-short/"+url.PathEscape(ticker), nil, &docs); err != nil {
		return 0, err
	}
	if len(docs) == 0 || docs[0].Price <= 0 {
		return 0, fmt.Errorf("no quote for %s", ticker)
	}
	return docs[0].Price, nil
}

type chartBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// historicalChart fetches one resolution of the historical chart endpoint
func (c *Client) historicalChart(ctx context.Context, resolution, ticker string, from, to time.Time) ([]market.PriceRow, error) {
	params := url.Values{}
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var bars []chartBar
	path := fmt.Sprintf("/historical-chart/%s/%s", resolution, url.PathEscape(ticker))
	if err := c.getJSON(ctx, path, params, &bars); err != nil {
		return nil, err
	}

	rows := make([]market.PriceRow, 0, len(bars))
	for _, bar := range bars {
		// Intraday resolutions carry a time component; dates only here
		date, err := time.Parse("2006-01-02", bar.Date[:min(len(bar.Date), 10)])
		if err != nil {
			continue
		}
		if bar.Close <= 0 {
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

	sortRowsAsc(rows)

	c.logger.WithFields(map[string]interface{}{
		"ticker":     ticker,
		"resolution": resolution,
		"count":      len(rows),
	}).Debug("Fetched price history")
	return rows, nil
}

// MonthlyPrices fetches monthly closes going back the given number of years
func (c *Client) MonthlyPrices(ctx context.Context, ticker string, years int) ([]market.PriceRow, error) {
	now := time.Now().UTC()
	return c.historicalChart(ctx, "1month", ticker, now.AddDate(-years, 0, 0), now)
}

// WeeklyPrices fetches weekly closes going back the given number of years
func (c *Client) WeeklyPrices(ctx context.Context, ticker string, years int) ([]market.PriceRow, error) {
	now := time.Now().UTC()
	return c.historicalChart(ctx, "1week", ticker, now.AddDate(-years, 0, 0), now)
}

// DailyPrices fetches daily closes going back the given number of days
func (c *Client) DailyPrices(ctx context.Context, ticker string, days int) ([]market.PriceRow, error) {
	now := time.Now().UTC()
	return c.historicalChart(ctx, "1day", ticker, now.AddDate(0, 0, -days), now)
}

type dividendHistoryResponse struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date        string  `json:"date"`
		PaymentDate string  `json:"paymentDate"`
		Dividend    float64 `json:"dividend"`
	} `json:"historical"`
}

// Dividends fetches dividend history. An empty response is not an error.
func (c *Client) Dividends(ctx context.Context, ticker string, years int, since time.Time) ([]market.DividendRow, error) {
	var resp dividendHistoryResponse
	path := "/historical-price-full/stock_dividend/" + url.PathEscape(ticker)
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(-years, 0, 0)
	if since.After(cutoff) {
		cutoff = since
	}

	rows := make([]market.DividendRow, 0, len(resp.Historical))
	for _, h := range resp.Historical {
		// The ex-date field is named "date"; payment date may be empty
		// for recently declared dividends, in which case the ex-date
		// stands in for it.
		exDate, exErr := time.Parse("2006-01-02", h.Date)
		payDate, payErr := time.Parse("2006-01-02", h.PaymentDate)
		if payErr != nil {
			if exErr != nil {
				continue
			}
			payDate = exDate
		}
		if h.Dividend <= 0 || payDate.Before(cutoff) {
			continue
		}

		row := market.DividendRow{PaymentDate: payDate, Amount: h.Dividend}
		if exErr == nil {
			ex := exDate
			row.ExDate = &ex
		}
		rows = append(rows, row)
	}

	sortDividendsAsc(rows)
	return rows, nil
}

type splitHistoryResponse struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date        string  `json:"date"`
		Numerator   float64 `json:"numerator"`
		Denominator float64 `json:"denominator"`
		Label       string  `json:"label"`
	} `json:"historical"`
}

// Splits fetches the split history. An empty list is a valid answer.
func (c *Client) Splits(ctx context.Context, ticker string) ([]market.SplitRow, error) {
	var resp splitHistoryResponse
	path := "/historical-price-full/stock_split/" + url.PathEscape(ticker)
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	rows := make([]market.SplitRow, 0, len(resp.Historical))
	for _, h := range resp.Historical {
		date, err := time.Parse("2006-01-02", h.Date)
		if err != nil || h.Numerator <= 0 || h.Denominator <= 0 {
			continue
		}
		rows = append(rows, market.SplitRow{
			Date:        date,
			Ratio:       h.Numerator / h.Denominator,
			Description: h.Label,
		})
	}
	return rows, nil
}

// The chart endpoints return newest-first; storage expects ascending.
func sortRowsAsc(rows []market.PriceRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
}

func sortDividendsAsc(rows []market.DividendRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].PaymentDate.Before(rows[j].PaymentDate) })
}
