// Package pipeline implements the two scheduled jobs: the intraday
// price refresh and the nightly full reconciliation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// priceRefreshBudget caps one run's wall clock so a slow provider
// never overlaps the next 15-minute slot
const priceRefreshBudget = 10 * time.Minute

// QuoteSource is the router surface the refresh job consumes
type QuoteSource interface {
	GetQuote(ctx context.Context, ticker string) (float64, string, error)
}

// InstrumentStore is the instrument surface the refresh job uses
type InstrumentStore interface {
	List(ctx context.Context) ([]*store.Instrument, error)
	TouchLastUpdated(ctx context.Context, id int64) error
	UpdateCurrentPrice(ctx context.Context, id int64, price float64, yield *float64) error
}

// PriceWriter writes live price bars
type PriceWriter interface {
	UpsertCurrent(ctx context.Context, g store.Granularity, p *store.PricePoint) error
}

// DividendReader reads stored dividends for the yield derivation
type DividendReader interface {
	List(ctx context.Context, instrumentID int64, limit int) ([]*store.Dividend, error)
}

// JobLogWriter persists pipeline log entries
type JobLogWriter interface {
	Insert(ctx context.Context, e *store.JobLogEntry) error
}

// PriceRefreshJob updates the intraday price of every instrument
// during business hours. Each refreshed quote is written to today's
// monthly and daily rows and onto the instrument itself.
type PriceRefreshJob struct {
	quotes      QuoteSource
	instruments InstrumentStore
	prices      PriceWriter
	dividends   DividendReader
	jobLogs     JobLogWriter
	logger      *logger.Logger
	now         func() time.Time
}

// NewPriceRefreshJob wires the intraday refresh
func NewPriceRefreshJob(
	quotes QuoteSource,
	instruments InstrumentStore,
	prices PriceWriter,
	dividends DividendReader,
	jobLogs JobLogWriter,
	log *logger.Logger,
) *PriceRefreshJob {
	return &PriceRefreshJob{
		quotes:      quotes,
		instruments: instruments,
		prices:      prices,
		dividends:   dividends,
		jobLogs:     jobLogs,
		logger:      log.WithField("job", "price_refresh"),
		now:         time.Now,
	}
}

func (j *PriceRefreshJob) Name() string { return "price_refresh" }

// Schedule runs every 15 minutes during US market hours, weekdays, UTC
func (j *PriceRefreshJob) Schedule() string { return "*/15 12-22 * * 1-5" }

// Run refreshes every instrument sequentially within the wall-clock
// budget. Quota-denied instruments are skipped and retried next cycle;
// a provider-wide outage downgrades the rest of the run to a
// cache-only pass that only touches timestamps.
func (j *PriceRefreshJob) Run(ctx context.Context) error {
	started := j.now()
	deadline := started.Add(priceRefreshBudget)

	instruments, err := j.instruments.List(ctx)
	if err != nil {
		return fmt.Errorf("listing instruments: %w", err)
	}

	updated, skipped, failed := 0, 0, 0
	upstreamDown := false

	for _, inst := range instruments {
		if j.now().After(deadline) {
			j.logger.WithField("remaining", len(instruments)-updated-skipped-failed).
				Warn("Wall-clock budget exceeded, terminating early")
			break
		}

		if upstreamDown {
			// cache-only pass: keep freshness visible without API calls
			if err := j.instruments.TouchLastUpdated(ctx, inst.ID); err == nil {
				skipped++
			}
			continue
		}

		err := j.refreshOne(ctx, inst)
		switch {
		case err == nil:
			updated++
		case errs.Is(err, errs.KindQuotaExhausted):
			skipped++
			j.logger.WithField("ticker", inst.Ticker).Warn("Quota exhausted, instrument skipped this cycle")
		case errs.Is(err, errs.KindUpstreamUnavailable):
			failed++
			upstreamDown = true
			j.logger.WithError(err).Warn("All providers unavailable, downgrading to cache-only pass")
		default:
			failed++
			j.logger.WithError(err).WithField("ticker", inst.Ticker).Error("Price refresh failed")
		}
	}

	elapsed := j.now().Sub(started)
	logErr := j.jobLogs.Insert(ctx, &store.JobLogEntry{
		Action:           "price_refresh_run",
		JobName:          j.Name(),
		Level:            store.LogLevelInfo,
		Success:          failed == 0,
		ExecutionTimeMS:  elapsed.Milliseconds(),
		RecordsProcessed: updated,
		Details:          fmt.Sprintf("updated=%d skipped=%d errors=%d", updated, skipped, failed),
		Metadata: map[string]string{
			"instruments": fmt.Sprintf("%d", len(instruments)),
			"cache_only":  fmt.Sprintf("%t", upstreamDown),
		},
	})
	if logErr != nil {
		j.logger.WithError(logErr).Error("Failed to write job summary log")
	}
	return nil
}

// refreshOne fetches the live quote and writes it into today's bars
func (j *PriceRefreshJob) refreshOne(ctx context.Context, inst *store.Instrument) error {
	price, source, err := j.quotes.GetQuote(ctx, inst.Ticker)
	if err != nil {
		return err
	}

	today := j.now().UTC().Truncate(24 * time.Hour)
	point := &store.PricePoint{
		InstrumentID: inst.ID,
		Date:         today,
		Raw:          price,
		Normalized:   price,
		SplitFactor:  1,
	}
	if err := j.prices.UpsertCurrent(ctx, store.GranularityDaily, point); err != nil {
		return err
	}
	monthly := *point
	monthly.Date = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := j.prices.UpsertCurrent(ctx, store.GranularityMonthly, &monthly); err != nil {
		return err
	}

	yield := j.currentYield(ctx, inst, price)
	if err := j.instruments.UpdateCurrentPrice(ctx, inst.ID, price, yield); err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"ticker": inst.Ticker,
		"price":  price,
		"source": source,
	}).Debug("Price refreshed")
	return nil
}

// currentYield derives the trailing yield from stored dividends. A
// missing history leaves the yield untouched.
func (j *PriceRefreshJob) currentYield(ctx context.Context, inst *store.Instrument, price float64) *float64 {
	if price <= 0 {
		return nil
	}
	dividends, err := j.dividends.List(ctx, inst.ID, 12)
	if err != nil || len(dividends) == 0 {
		return nil
	}

	cutoff := j.now().UTC().AddDate(-1, 0, 0)
	var trailing float64
	for _, d := range dividends {
		if d.PaymentDate.After(cutoff) {
			trailing += d.Normalized
		}
	}
	if trailing == 0 {
		return nil
	}
	y := trailing / price * 100
	return &y
}
