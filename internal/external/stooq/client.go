// Package stooq implements the last-resort provider client. Stooq serves
// free CSV downloads for price history and an HTML quote page; there is
// no dividend or split endpoint and no API key.
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/pkg/httputil"
	"github.com/mzurek/divtrack/pkg/logger"
)

const defaultBaseURL = "https://stooq.com"

// Client downloads CSV history and scrapes the quote page
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string

	// limiter paces scraping; stooq has no documented API limits but
	// throttles aggressive clients by IP.
	limiter *rate.Limiter
}

// NewClient creates a new stooq client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("provider", market.ProviderFallback),
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// NewClientWithBaseURL creates a client against a custom base URL (for testing)
func NewClientWithBaseURL(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	c := NewClient(httpClient, log)
	c.baseURL = baseURL
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

// ID returns the provider role id
func (c *Client) ID() string {
	return market.ProviderFallback
}

// symbol maps a plain US ticker to the stooq form (lowercase, .us suffix)
func symbol(ticker string) string {
	return strings.ToLower(ticker) + ".us"
}

// Profile is not served by this provider
func (c *Client) Profile(ctx context.Context, ticker string) (*market.Profile, error) {
	return nil, market.ErrUnsupported
}

// Quote scrapes the current price from the quote page
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	fullURL := fmt.Sprintf("%s/q/?s=%s", c.baseURL, symbol(ticker))
	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
	})
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to parse quote page: %w", err)
	}

	// The live quote sits in <span id="aq_<symbol>_c2">; older page
	// variants use the _c1 suffix.
	var price float64
	for _, id := range []string{"aq_" + symbol(ticker) + "_c2", "aq_" + symbol(ticker) + "_c1"} {
		text := strings.TrimSpace(doc.Find("span#" + id).First().Text())
		if text == "" {
			continue
		}
		if v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64); err == nil && v > 0 {
			price = v
			break
		}
	}

	if price <= 0 {
		return 0, fmt.Errorf("quote not found on page for %s", ticker)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"price":  price,
	}).Debug("Scraped quote")
	return price, nil
}

// fetchCSV downloads one interval of the history endpoint.
// Interval is d (daily), w (weekly) or m (monthly).
func (c *Client) fetchCSV(ctx context.Context, ticker, interval string, from time.Time) ([]market.PriceRow, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=%s",
		c.baseURL, symbol(ticker),
		from.Format("20060102"), time.Now().UTC().Format("20060102"), interval)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return parseCSV(resp.Body)
}

// parseCSV reads the stooq CSV layout: Date,Open,High,Low,Close,Volume
func parseCSV(r io.Reader) ([]market.PriceRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	var rows []market.PriceRow
	for i, rec := range records {
		if i == 0 || len(rec) < 5 {
			continue // header
		}

		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}

		open, _ := strconv.ParseFloat(rec[1], 64)
		high, _ := strconv.ParseFloat(rec[2], 64)
		low, _ := strconv.ParseFloat(rec[3], 64)
		closePrice, err := strconv.ParseFloat(rec[4], 64)
		if err != nil || closePrice <= 0 {
			continue
		}

		var volume int64
		if len(rec) > 5 {
			volume, _ = strconv.ParseInt(rec[5], 10, 64)
		}

		rows = append(rows, market.PriceRow{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return rows, nil
}

// MonthlyPrices fetches monthly closes going back the given number of years
func (c *Client) MonthlyPrices(ctx context.Context, ticker string, years int) ([]market.PriceRow, error) {
	return c.fetchCSV(ctx, ticker, "m", time.Now().UTC().AddDate(-years, 0, 0))
}

// WeeklyPrices fetches weekly closes going back the given number of years
func (c *Client) WeeklyPrices(ctx context.Context, ticker string, years int) ([]market.PriceRow, error) {
	return c.fetchCSV(ctx, ticker, "w", time.Now().UTC().AddDate(-years, 0, 0))
}

// DailyPrices fetches daily closes going back the given number of days
func (c *Client) DailyPrices(ctx context.Context, ticker string, days int) ([]market.PriceRow, error) {
	return c.fetchCSV(ctx, ticker, "d", time.Now().UTC().AddDate(0, 0, -days))
}

// Dividends is not served by this provider
func (c *Client) Dividends(ctx context.Context, ticker string, years int, since time.Time) ([]market.DividendRow, error) {
	return nil, market.ErrUnsupported
}

// Splits is not served by this provider
func (c *Client) Splits(ctx context.Context, ticker string) ([]market.SplitRow, error) {
	return nil, market.ErrUnsupported
}
