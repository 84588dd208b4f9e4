// Package completion drives providers to back-fill missing history,
// one instrument per invocation.
package completion

import (
	"context"
	"time"

	"github.com/mzurek/divtrack/internal/audit"
	"github.com/mzurek/divtrack/internal/router"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// Result reports what one run added and whether each granularity is
// complete afterwards.
type Result struct {
	PricesFilled    int  `json:"prices_filled"`
	WeeklyFilled    int  `json:"weekly_filled"`
	DailyFilled     int  `json:"daily_filled"`
	DividendsFilled int  `json:"dividends_filled"`
	APICallsUsed    int  `json:"api_calls_used"`
	MonthlyComplete bool `json:"monthly_complete"`
	WeeklyComplete  bool `json:"weekly_complete"`
	DailyComplete   bool `json:"daily_complete"`
	DivComplete     bool `json:"dividends_complete"`
}

// Fetcher is the router surface the orchestrator consumes
type Fetcher interface {
	GetMonthly(ctx context.Context, ticker string, years int, normalize bool) ([]router.Normalized, error)
	GetWeekly(ctx context.Context, ticker string, years int, normalize bool) ([]router.Normalized, error)
	GetDaily(ctx context.Context, ticker string, days int, normalize bool) ([]router.Normalized, error)
	GetDividends(ctx context.Context, ticker string, years int, normalize bool, since time.Time) ([]router.Normalized, error)
}

// PriceStore is the price repository surface the orchestrator writes to
type PriceStore interface {
	ListDates(ctx context.Context, g store.Granularity, instrumentID int64) ([]time.Time, error)
	Insert(ctx context.Context, g store.Granularity, p *store.PricePoint) (bool, error)
}

// DividendStore is the dividend repository surface the orchestrator
// writes to
type DividendStore interface {
	ListPaymentDates(ctx context.Context, instrumentID int64) ([]time.Time, error)
	Insert(ctx context.Context, d *store.Dividend) (bool, error)
}

// Orchestrator audits stored history and fills the gaps. Rows already
// present are never touched; only absent (instrument, date) pairs are
// inserted, and each granularity commits independently so a provider
// failure mid-run leaves earlier granularities intact.
type Orchestrator struct {
	fetcher   Fetcher
	prices    PriceStore
	dividends DividendStore
	auditor   *audit.Auditor

	maxHistoryYears int
	dailyWindowDays int
	logger          *logger.Logger
	now             func() time.Time
}

// New wires the orchestrator
func New(fetcher Fetcher, prices PriceStore, dividends DividendStore, auditor *audit.Auditor, maxHistoryYears, dailyWindowDays int, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:         fetcher,
		prices:          prices,
		dividends:       dividends,
		auditor:         auditor,
		maxHistoryYears: maxHistoryYears,
		dailyWindowDays: dailyWindowDays,
		logger:          log.WithField("module", "completion"),
		now:             time.Now,
	}
}

// Run completes all four granularities for one instrument
func (o *Orchestrator) Run(ctx context.Context, inst *store.Instrument) (*Result, error) {
	monthly, err := o.prices.ListDates(ctx, store.GranularityMonthly, inst.ID)
	if err != nil {
		return nil, err
	}
	weekly, err := o.prices.ListDates(ctx, store.GranularityWeekly, inst.ID)
	if err != nil {
		return nil, err
	}
	daily, err := o.prices.ListDates(ctx, store.GranularityDaily, inst.ID)
	if err != nil {
		return nil, err
	}
	divDates, err := o.dividends.ListPaymentDates(ctx, inst.ID)
	if err != nil {
		return nil, err
	}

	pre := o.auditor.Audit(inst.InceptionDate, monthly, weekly, daily, divDates)
	res := &Result{
		MonthlyComplete: pre.Monthly.Complete,
		WeeklyComplete:  pre.Weekly.Complete,
		DailyComplete:   pre.Daily.Complete,
		DivComplete:     pre.Dividends.Complete,
	}
	if pre.Monthly.Complete && pre.Weekly.Complete && pre.Daily.Complete && pre.Dividends.Complete {
		o.logger.WithField("ticker", inst.Ticker).Debug("History already complete, no fetch needed")
		return res, nil
	}

	if !pre.Monthly.Complete {
		added, err := o.fillPrices(ctx, inst, store.GranularityMonthly, pre.Monthly, len(monthly) > 0)
		if err != nil {
			o.logger.WithError(err).WithField("ticker", inst.Ticker).Warn("Monthly completion failed")
		} else {
			res.PricesFilled = added
			res.APICallsUsed++
		}
	}
	if !pre.Weekly.Complete {
		added, err := o.fillPrices(ctx, inst, store.GranularityWeekly, pre.Weekly, len(weekly) > 0)
		if err != nil {
			o.logger.WithError(err).WithField("ticker", inst.Ticker).Warn("Weekly completion failed")
		} else {
			res.WeeklyFilled = added
			res.APICallsUsed++
		}
	}
	if !pre.Daily.Complete {
		added, err := o.fillDaily(ctx, inst)
		if err != nil {
			o.logger.WithError(err).WithField("ticker", inst.Ticker).Warn("Daily completion failed")
		} else {
			res.DailyFilled = added
			res.APICallsUsed++
		}
	}
	if !pre.Dividends.Complete {
		added, err := o.fillDividends(ctx, inst, pre.Dividends, len(divDates) > 0)
		if err != nil {
			o.logger.WithError(err).WithField("ticker", inst.Ticker).Warn("Dividend completion failed")
		} else {
			res.DividendsFilled = added
			res.APICallsUsed++
		}
	}

	monthly, _ = o.prices.ListDates(ctx, store.GranularityMonthly, inst.ID)
	weekly, _ = o.prices.ListDates(ctx, store.GranularityWeekly, inst.ID)
	daily, _ = o.prices.ListDates(ctx, store.GranularityDaily, inst.ID)
	divDates, _ = o.dividends.ListPaymentDates(ctx, inst.ID)

	post := o.auditor.Audit(inst.InceptionDate, monthly, weekly, daily, divDates)
	res.MonthlyComplete = post.Monthly.Complete
	res.WeeklyComplete = post.Weekly.Complete
	res.DailyComplete = post.Daily.Complete
	res.DivComplete = post.Dividends.Complete

	o.logger.WithFields(map[string]interface{}{
		"ticker":           inst.Ticker,
		"prices_filled":    res.PricesFilled,
		"weekly_filled":    res.WeeklyFilled,
		"daily_filled":     res.DailyFilled,
		"dividends_filled": res.DividendsFilled,
		"api_calls_used":   res.APICallsUsed,
	}).Info("Completion run finished")
	return res, nil
}

// fetchYears sizes the router window: the full target window when
// nothing is stored, otherwise just enough to cover the earliest
// missing bucket.
func (o *Orchestrator) fetchYears(inst *store.Instrument, rep audit.Report, hasRows bool) int {
	target := o.auditor.TargetStart(inst.InceptionDate)
	if hasRows {
		if earliest, ok := audit.EarliestMissing(rep); ok {
			target = earliest
		}
	}
	years := int(o.now().UTC().Sub(target).Hours()/24/365) + 1
	if years < 1 {
		years = 1
	}
	if years > o.maxHistoryYears {
		years = o.maxHistoryYears
	}
	return years
}

func (o *Orchestrator) fillPrices(ctx context.Context, inst *store.Instrument, g store.Granularity, rep audit.Report, hasRows bool) (int, error) {
	years := o.fetchYears(inst, rep, hasRows)

	var rows []router.Normalized
	var err error
	if g == store.GranularityMonthly {
		rows, err = o.fetcher.GetMonthly(ctx, inst.Ticker, years, true)
	} else {
		rows, err = o.fetcher.GetWeekly(ctx, inst.Ticker, years, true)
	}
	if err != nil {
		return 0, err
	}

	added := 0
	for _, row := range rows {
		p := &store.PricePoint{
			InstrumentID: inst.ID,
			Date:         row.Date,
			Raw:          row.Raw,
			Normalized:   row.Normalized,
			SplitFactor:  row.Factor,
		}
		if g == store.GranularityWeekly {
			p.ISOYear, p.ISOWeek = row.Date.ISOWeek()
		}
		inserted, err := o.prices.Insert(ctx, g, p)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}

func (o *Orchestrator) fillDaily(ctx context.Context, inst *store.Instrument) (int, error) {
	rows, err := o.fetcher.GetDaily(ctx, inst.Ticker, o.dailyWindowDays, true)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, row := range rows {
		inserted, err := o.prices.Insert(ctx, store.GranularityDaily, &store.PricePoint{
			InstrumentID: inst.ID,
			Date:         row.Date,
			Raw:          row.Raw,
			Normalized:   row.Normalized,
			SplitFactor:  row.Factor,
		})
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}

func (o *Orchestrator) fillDividends(ctx context.Context, inst *store.Instrument, rep audit.Report, hasRows bool) (int, error) {
	years := o.fetchYears(inst, rep, hasRows)

	rows, err := o.fetcher.GetDividends(ctx, inst.Ticker, years, true, time.Time{})
	if err != nil {
		return 0, err
	}

	added := 0
	for _, row := range rows {
		inserted, err := o.dividends.Insert(ctx, &store.Dividend{
			InstrumentID: inst.ID,
			PaymentDate:  row.Date,
			ExDate:       row.ExDate,
			Raw:          row.Raw,
			Normalized:   row.Normalized,
			SplitFactor:  row.Factor,
		})
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}
