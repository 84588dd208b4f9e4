package completion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzurek/divtrack/internal/audit"
	"github.com/mzurek/divtrack/internal/router"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// fakeFetcher serves canned rows and records the requested windows
type fakeFetcher struct {
	monthly   []router.Normalized
	weekly    []router.Normalized
	daily     []router.Normalized
	dividends []router.Normalized

	monthlyErr error

	calls      int
	yearsAsked map[string]int
	daysAsked  int
}

func (f *fakeFetcher) record(field string, window int) {
	f.calls++
	if f.yearsAsked == nil {
		f.yearsAsked = make(map[string]int)
	}
	f.yearsAsked[field] = window
}

func (f *fakeFetcher) GetMonthly(ctx context.Context, ticker string, years int, normalize bool) ([]router.Normalized, error) {
	f.record("monthly", years)
	if f.monthlyErr != nil {
		return nil, f.monthlyErr
	}
	return f.monthly, nil
}

func (f *fakeFetcher) GetWeekly(ctx context.Context, ticker string, years int, normalize bool) ([]router.Normalized, error) {
	f.record("weekly", years)
	return f.weekly, nil
}

func (f *fakeFetcher) GetDaily(ctx context.Context, ticker string, days int, normalize bool) ([]router.Normalized, error) {
	f.calls++
	f.daysAsked = days
	return f.daily, nil
}

func (f *fakeFetcher) GetDividends(ctx context.Context, ticker string, years int, normalize bool, since time.Time) ([]router.Normalized, error) {
	f.record("dividends", years)
	return f.dividends, nil
}

// memPrices is an in-memory PriceStore keyed by (granularity, date)
type memPrices struct {
	rows map[store.Granularity]map[string]time.Time
}

func newMemPrices() *memPrices {
	return &memPrices{rows: make(map[store.Granularity]map[string]time.Time)}
}

func (m *memPrices) preload(g store.Granularity, dates ...time.Time) {
	for _, d := range dates {
		if m.rows[g] == nil {
			m.rows[g] = make(map[string]time.Time)
		}
		m.rows[g][d.Format("2006-01-02")] = d
	}
}

func (m *memPrices) ListDates(ctx context.Context, g store.Granularity, instrumentID int64) ([]time.Time, error) {
	var dates []time.Time
	for _, d := range m.rows[g] {
		dates = append(dates, d)
	}
	return dates, nil
}

func (m *memPrices) Insert(ctx context.Context, g store.Granularity, p *store.PricePoint) (bool, error) {
	key := p.Date.Format("2006-01-02")
	if _, exists := m.rows[g][key]; exists {
		return false, nil
	}
	m.preload(g, p.Date)
	return true, nil
}

// memDividends is an in-memory DividendStore keyed by payment date
type memDividends struct {
	rows map[string]time.Time
}

func newMemDividends() *memDividends {
	return &memDividends{rows: make(map[string]time.Time)}
}

func (m *memDividends) preload(dates ...time.Time) {
	for _, d := range dates {
		m.rows[d.Format("2006-01-02")] = d
	}
}

func (m *memDividends) ListPaymentDates(ctx context.Context, instrumentID int64) ([]time.Time, error) {
	var dates []time.Time
	for _, d := range m.rows {
		dates = append(dates, d)
	}
	return dates, nil
}

func (m *memDividends) Insert(ctx context.Context, d *store.Dividend) (bool, error) {
	key := d.PaymentDate.Format("2006-01-02")
	if _, exists := m.rows[key]; exists {
		return false, nil
	}
	m.preload(d.PaymentDate)
	return true, nil
}

func normalizedRows(dates ...time.Time) []router.Normalized {
	rows := make([]router.Normalized, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, router.Normalized{Date: d, Raw: 50, Normalized: 50, Factor: 1})
	}
	return rows
}

func newTestOrchestrator(f Fetcher, p PriceStore, d DividendStore, maxYears, windowDays int) *Orchestrator {
	return New(f, p, d, audit.New(maxYears, windowDays), maxYears, windowDays, logger.NewNop())
}

func TestRun_CompleteHistorySkipsFetching(t *testing.T) {
	now := time.Now().UTC()
	inception := now.AddDate(0, 0, -60)

	prices := newMemPrices()
	for cur := time.Date(inception.Year(), inception.Month(), 1, 0, 0, 0, 0, time.UTC); !cur.After(now); cur = cur.AddDate(0, 1, 0) {
		prices.preload(store.GranularityMonthly, cur)
	}
	for cur := inception; !cur.After(now); cur = cur.AddDate(0, 0, 7) {
		prices.preload(store.GranularityWeekly, cur)
	}
	for i := 3; i >= 0; i-- {
		prices.preload(store.GranularityDaily, now.AddDate(0, 0, -i))
	}
	dividends := newMemDividends()
	dividends.preload(inception, now)

	fetcher := &fakeFetcher{}
	o := newTestOrchestrator(fetcher, prices, dividends, 1, 3)

	res, err := o.Run(context.Background(), &store.Instrument{ID: 1, Ticker: "SCHD", InceptionDate: &inception})
	require.NoError(t, err)
	assert.True(t, res.MonthlyComplete)
	assert.True(t, res.WeeklyComplete)
	assert.True(t, res.DailyComplete)
	assert.True(t, res.DivComplete)
	assert.Zero(t, fetcher.calls, "complete history must not spend quota")
	assert.Zero(t, res.APICallsUsed)
}

func TestRun_EmptyHistoryFetchesFullWindow(t *testing.T) {
	now := time.Now().UTC()

	fetcher := &fakeFetcher{
		monthly:   normalizedRows(now.AddDate(0, -2, 0), now.AddDate(0, -1, 0)),
		weekly:    normalizedRows(now.AddDate(0, 0, -14), now.AddDate(0, 0, -7)),
		daily:     normalizedRows(now.AddDate(0, 0, -1), now),
		dividends: normalizedRows(now.AddDate(0, -3, 0)),
	}
	o := newTestOrchestrator(fetcher, newMemPrices(), newMemDividends(), 15, 365)

	res, err := o.Run(context.Background(), &store.Instrument{ID: 1, Ticker: "SCHD"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.PricesFilled)
	assert.Equal(t, 2, res.WeeklyFilled)
	assert.Equal(t, 2, res.DailyFilled)
	assert.Equal(t, 1, res.DividendsFilled)
	assert.Equal(t, 4, res.APICallsUsed)

	// with nothing stored every granularity asks for the full window
	assert.Equal(t, 15, fetcher.yearsAsked["monthly"])
	assert.Equal(t, 15, fetcher.yearsAsked["weekly"])
	assert.Equal(t, 15, fetcher.yearsAsked["dividends"])
	assert.Equal(t, 365, fetcher.daysAsked)
}

func TestRun_GranularitiesCommitIndependently(t *testing.T) {
	now := time.Now().UTC()

	fetcher := &fakeFetcher{
		monthlyErr: context.DeadlineExceeded,
		weekly:     normalizedRows(now.AddDate(0, 0, -7)),
		daily:      normalizedRows(now),
		dividends:  normalizedRows(now.AddDate(0, -3, 0)),
	}
	prices := newMemPrices()
	o := newTestOrchestrator(fetcher, prices, newMemDividends(), 15, 365)

	res, err := o.Run(context.Background(), &store.Instrument{ID: 1, Ticker: "SCHD"})
	require.NoError(t, err, "a failed granularity must not abort the run")

	assert.Zero(t, res.PricesFilled)
	assert.Equal(t, 1, res.WeeklyFilled)
	assert.Equal(t, 1, res.DailyFilled)
	assert.Equal(t, 1, res.DividendsFilled)

	// only successful fetches count against the API budget
	assert.Equal(t, 3, res.APICallsUsed)
}

func TestRun_ExistingRowsNotCounted(t *testing.T) {
	now := time.Now().UTC()
	first := now.AddDate(0, -2, 0)
	second := now.AddDate(0, -1, 0)

	prices := newMemPrices()
	prices.preload(store.GranularityMonthly, first)

	fetcher := &fakeFetcher{monthly: normalizedRows(first, second)}
	o := newTestOrchestrator(fetcher, prices, newMemDividends(), 15, 365)

	res, err := o.Run(context.Background(), &store.Instrument{ID: 1, Ticker: "SCHD"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PricesFilled, "the stored row must stay untouched")
}

func TestFetchYears_SizedByEarliestMissing(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{}, newMemPrices(), newMemDividends(), 15, 365)
	o.now = func() time.Time { return time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC) }
	inception := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	inst := &store.Instrument{ID: 1, Ticker: "SCHD", InceptionDate: &inception}

	// nothing stored: the full target window, clamped
	years := o.fetchYears(inst, audit.Report{}, false)
	assert.Equal(t, 15, years)

	// a monthly gap narrows the window to reach it
	years = o.fetchYears(inst, audit.Report{Missing: []string{"2024-06"}}, true)
	assert.Equal(t, 3, years)

	// weekly buckets size the window the same way
	years = o.fetchYears(inst, audit.Report{Missing: []string{"2024-W05", "2024-W06"}}, true)
	assert.Equal(t, 3, years)
}
