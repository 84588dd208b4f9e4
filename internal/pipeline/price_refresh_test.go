package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

type fakeQuotes struct {
	prices map[string]float64
	errors map[string]error
	calls  int
}

func (f *fakeQuotes) GetQuote(ctx context.Context, ticker string) (float64, string, error) {
	f.calls++
	if err, ok := f.errors[ticker]; ok {
		return 0, "", err
	}
	return f.prices[ticker], "alphavantage", nil
}

type priceUpdate struct {
	id    int64
	price float64
	yield *float64
}

type fakeInstruments struct {
	list    []*store.Instrument
	touched []int64
	updates []priceUpdate
}

func (f *fakeInstruments) List(ctx context.Context) ([]*store.Instrument, error) {
	return f.list, nil
}

func (f *fakeInstruments) TouchLastUpdated(ctx context.Context, id int64) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeInstruments) UpdateCurrentPrice(ctx context.Context, id int64, price float64, yield *float64) error {
	f.updates = append(f.updates, priceUpdate{id: id, price: price, yield: yield})
	return nil
}

type upsert struct {
	granularity store.Granularity
	point       store.PricePoint
}

type fakePrices struct {
	upserts []upsert
}

func (f *fakePrices) UpsertCurrent(ctx context.Context, g store.Granularity, p *store.PricePoint) error {
	f.upserts = append(f.upserts, upsert{granularity: g, point: *p})
	return nil
}

type fakeDividends struct {
	rows map[int64][]*store.Dividend
}

func (f *fakeDividends) List(ctx context.Context, instrumentID int64, limit int) ([]*store.Dividend, error) {
	return f.rows[instrumentID], nil
}

type fakeJobLogs struct {
	entries []*store.JobLogEntry
}

func (f *fakeJobLogs) Insert(ctx context.Context, e *store.JobLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func instrument(id int64, ticker string) *store.Instrument {
	return &store.Instrument{ID: id, Ticker: ticker}
}

func newTestJob(quotes *fakeQuotes, instruments *fakeInstruments, prices *fakePrices, dividends *fakeDividends, jobLogs *fakeJobLogs) *PriceRefreshJob {
	return NewPriceRefreshJob(quotes, instruments, prices, dividends, jobLogs, logger.NewNop())
}

func TestPriceRefresh_WritesTodaysBars(t *testing.T) {
	base := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)

	quotes := &fakeQuotes{prices: map[string]float64{"SCHD": 28.50}}
	instruments := &fakeInstruments{list: []*store.Instrument{instrument(1, "SCHD")}}
	prices := &fakePrices{}
	dividends := &fakeDividends{rows: map[int64][]*store.Dividend{
		1: {
			{InstrumentID: 1, PaymentDate: time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), Normalized: 0.26},
			{InstrumentID: 1, PaymentDate: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), Normalized: 0.25},
			// older than a year, excluded from the trailing sum
			{InstrumentID: 1, PaymentDate: time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), Normalized: 0.24},
		},
	}}
	jobLogs := &fakeJobLogs{}

	job := newTestJob(quotes, instruments, prices, dividends, jobLogs)
	job.now = func() time.Time { return base }

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, prices.upserts, 2)
	assert.Equal(t, store.GranularityDaily, prices.upserts[0].granularity)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), prices.upserts[0].point.Date)
	assert.Equal(t, 28.50, prices.upserts[0].point.Raw)
	assert.Equal(t, store.GranularityMonthly, prices.upserts[1].granularity)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), prices.upserts[1].point.Date)

	require.Len(t, instruments.updates, 1)
	assert.Equal(t, 28.50, instruments.updates[0].price)
	require.NotNil(t, instruments.updates[0].yield)
	assert.InDelta(t, 0.51/28.50*100, *instruments.updates[0].yield, 1e-9)

	require.Len(t, jobLogs.entries, 1)
	entry := jobLogs.entries[0]
	assert.Equal(t, "price_refresh_run", entry.Action)
	assert.True(t, entry.Success)
	assert.Equal(t, 1, entry.RecordsProcessed)
	assert.Equal(t, "1", entry.Metadata["instruments"])
	assert.Equal(t, "false", entry.Metadata["cache_only"])
}

func TestPriceRefresh_NoDividendHistoryLeavesYieldUnset(t *testing.T) {
	quotes := &fakeQuotes{prices: map[string]float64{"VOO": 520.0}}
	instruments := &fakeInstruments{list: []*store.Instrument{instrument(2, "VOO")}}
	jobLogs := &fakeJobLogs{}

	job := newTestJob(quotes, instruments, &fakePrices{}, &fakeDividends{}, jobLogs)
	job.now = func() time.Time { return time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, instruments.updates, 1)
	assert.Nil(t, instruments.updates[0].yield)
}

func TestPriceRefresh_QuotaDeniedInstrumentSkipped(t *testing.T) {
	quotes := &fakeQuotes{
		prices: map[string]float64{"VOO": 520.0},
		errors: map[string]error{"SCHD": errs.Newf(errs.KindQuotaExhausted, "daily quota spent")},
	}
	instruments := &fakeInstruments{list: []*store.Instrument{instrument(1, "SCHD"), instrument(2, "VOO")}}
	jobLogs := &fakeJobLogs{}

	job := newTestJob(quotes, instruments, &fakePrices{}, &fakeDividends{}, jobLogs)
	job.now = func() time.Time { return time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, instruments.updates, 1, "only the admitted instrument is written")
	assert.Equal(t, int64(2), instruments.updates[0].id)

	require.Len(t, jobLogs.entries, 1)
	entry := jobLogs.entries[0]
	assert.True(t, entry.Success, "a quota skip is not a failure")
	assert.Equal(t, "updated=1 skipped=1 errors=0", entry.Details)
}

func TestPriceRefresh_OutageDowngradesToCacheOnly(t *testing.T) {
	quotes := &fakeQuotes{
		errors: map[string]error{"SCHD": errs.New(errs.KindUpstreamUnavailable, "all providers failed")},
	}
	instruments := &fakeInstruments{list: []*store.Instrument{
		instrument(1, "SCHD"), instrument(2, "VOO"), instrument(3, "JEPI"),
	}}
	jobLogs := &fakeJobLogs{}

	job := newTestJob(quotes, instruments, &fakePrices{}, &fakeDividends{}, jobLogs)
	job.now = func() time.Time { return time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 1, quotes.calls, "no further API calls after the outage")
	assert.Equal(t, []int64{2, 3}, instruments.touched, "remaining instruments only get their timestamps refreshed")
	assert.Empty(t, instruments.updates)

	require.Len(t, jobLogs.entries, 1)
	entry := jobLogs.entries[0]
	assert.False(t, entry.Success)
	assert.Equal(t, "true", entry.Metadata["cache_only"])
	assert.Equal(t, "updated=0 skipped=2 errors=1", entry.Details)
}

func TestPriceRefresh_WallClockBudgetStopsRun(t *testing.T) {
	base := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)

	quotes := &fakeQuotes{prices: map[string]float64{"SCHD": 28.50, "VOO": 520.0}}
	instruments := &fakeInstruments{list: []*store.Instrument{instrument(1, "SCHD"), instrument(2, "VOO")}}
	jobLogs := &fakeJobLogs{}

	job := newTestJob(quotes, instruments, &fakePrices{}, &fakeDividends{}, jobLogs)
	calls := 0
	job.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(11 * time.Minute)
	}

	require.NoError(t, job.Run(context.Background()))

	assert.Zero(t, quotes.calls, "no instrument is refreshed past the budget")
	require.Len(t, jobLogs.entries, 1)
	entry := jobLogs.entries[0]
	assert.Equal(t, 0, entry.RecordsProcessed)
	assert.Equal(t, "2", entry.Metadata["instruments"], "the summary is written even on an early stop")
}
