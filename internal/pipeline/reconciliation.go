package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mzurek/divtrack/internal/completion"
	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/frequency"
	"github.com/mzurek/divtrack/internal/router"
	"github.com/mzurek/divtrack/internal/splits"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// ReconciliationJob is the nightly pass: per instrument it refreshes
// basic info, runs smart completion across all granularities, syncs
// the split registry and renormalizes when a new split appears. After
// all instruments it sweeps expired daily prices and old job logs.
type ReconciliationJob struct {
	router       *router.Router
	orchestrator *completion.Orchestrator
	registry     *splits.Registry
	instruments  *store.InstrumentRepository
	prices       *store.PriceRepository
	dividends    *store.DividendRepository
	jobLogs      *store.JobLogRepository
	logger       *logger.Logger

	dailyWindowDays       int
	systemLogRetention    time.Duration
	dividendCheckInterval time.Duration
	lastDividendCheck     map[int64]time.Time
	now                   func() time.Time
}

// jobLogRetention bounds how long job-named log entries are kept
const jobLogRetention = 30 * 24 * time.Hour

// NewReconciliationJob wires the nightly reconciliation
func NewReconciliationJob(
	rt *router.Router,
	orchestrator *completion.Orchestrator,
	registry *splits.Registry,
	instruments *store.InstrumentRepository,
	prices *store.PriceRepository,
	dividends *store.DividendRepository,
	jobLogs *store.JobLogRepository,
	dailyWindowDays, systemLogRetentionDays, dividendCheckIntervalHours int,
	log *logger.Logger,
) *ReconciliationJob {
	return &ReconciliationJob{
		router:                rt,
		orchestrator:          orchestrator,
		registry:              registry,
		instruments:           instruments,
		prices:                prices,
		dividends:             dividends,
		jobLogs:               jobLogs,
		logger:                log.WithField("job", "nightly_reconciliation"),
		dailyWindowDays:       dailyWindowDays,
		systemLogRetention:    time.Duration(systemLogRetentionDays) * 24 * time.Hour,
		dividendCheckInterval: time.Duration(dividendCheckIntervalHours) * time.Hour,
		lastDividendCheck:     make(map[int64]time.Time),
		now:                   time.Now,
	}
}

func (j *ReconciliationJob) Name() string { return "nightly_reconciliation" }

// Schedule runs once per business day after US market close, UTC
func (j *ReconciliationJob) Schedule() string { return "50 22 * * 1-5" }

// Run reconciles every instrument in sequence, then sweeps retention
func (j *ReconciliationJob) Run(ctx context.Context) error {
	started := j.now()

	instruments, err := j.instruments.List(ctx)
	if err != nil {
		return fmt.Errorf("listing instruments: %w", err)
	}

	processed, skipped, failed := 0, 0, 0
	for _, inst := range instruments {
		err := j.reconcileOne(ctx, inst)
		switch {
		case err == nil:
			processed++
		case errs.Is(err, errs.KindQuotaExhausted):
			skipped++
			j.logger.WithField("ticker", inst.Ticker).Warn("Quota exhausted, instrument skipped this cycle")
		default:
			failed++
			j.logger.WithError(err).WithField("ticker", inst.Ticker).Error("Reconciliation failed")
		}
	}

	j.sweep(ctx)

	elapsed := j.now().Sub(started)
	logErr := j.jobLogs.Insert(ctx, &store.JobLogEntry{
		Action:           "reconciliation_run",
		JobName:          j.Name(),
		Level:            store.LogLevelInfo,
		Success:          failed == 0,
		ExecutionTimeMS:  elapsed.Milliseconds(),
		RecordsProcessed: processed,
		Details:          fmt.Sprintf("processed=%d skipped=%d errors=%d", processed, skipped, failed),
	})
	if logErr != nil {
		j.logger.WithError(logErr).Error("Failed to write job summary log")
	}
	return nil
}

// reconcileOne runs the per-instrument sequence: basic info first,
// then completion, then splits with renormalization. The order matters
// so renormalization covers any rows completion just added.
func (j *ReconciliationJob) reconcileOne(ctx context.Context, inst *store.Instrument) error {
	instStart := j.now()

	if err := j.refreshInfo(ctx, inst); err != nil {
		if errs.Is(err, errs.KindQuotaExhausted) {
			return err
		}
		j.logger.WithError(err).WithField("ticker", inst.Ticker).Warn("Basic info refresh failed, continuing")
	}

	result, err := j.orchestrator.Run(ctx, inst)
	if err != nil {
		return err
	}

	newDividends, err := j.checkNewDividends(ctx, inst)
	if err != nil {
		j.logger.WithError(err).WithField("ticker", inst.Ticker).Warn("New dividend check failed")
	}

	reported, err := j.router.GetSplits(ctx, inst.Ticker)
	if err != nil {
		return err
	}
	discovered, err := j.registry.Sync(ctx, inst.ID, inst.Ticker, reported)
	if err != nil {
		return err
	}

	elapsed := j.now().Sub(instStart)
	logErr := j.jobLogs.Insert(ctx, &store.JobLogEntry{
		Action:           "instrument_reconciled",
		JobName:          j.Name(),
		Level:            store.LogLevelInfo,
		Success:          true,
		ExecutionTimeMS:  elapsed.Milliseconds(),
		RecordsProcessed: result.PricesFilled + result.WeeklyFilled + result.DailyFilled + result.DividendsFilled,
		Details:          inst.Ticker,
		Metadata: map[string]string{
			"prices_filled":    fmt.Sprintf("%d", result.PricesFilled),
			"weekly_filled":    fmt.Sprintf("%d", result.WeeklyFilled),
			"daily_filled":     fmt.Sprintf("%d", result.DailyFilled),
			"dividends_filled": fmt.Sprintf("%d", result.DividendsFilled+newDividends),
			"api_calls_used":   fmt.Sprintf("%d", result.APICallsUsed),
			"splits_found":     fmt.Sprintf("%d", discovered),
		},
	})
	if logErr != nil {
		j.logger.WithError(logErr).Error("Failed to write instrument log")
	}
	return nil
}

// checkNewDividends fetches payments announced since the newest stored
// one. Completion only repairs historical gaps, so without this pass a
// complete history would never gain new payments. The check is rate
// limited by the configured interval.
func (j *ReconciliationJob) checkNewDividends(ctx context.Context, inst *store.Instrument) (int, error) {
	if last, ok := j.lastDividendCheck[inst.ID]; ok && j.now().Sub(last) < j.dividendCheckInterval {
		return 0, nil
	}

	var since time.Time
	if dates, err := j.dividends.ListPaymentDates(ctx, inst.ID); err == nil && len(dates) > 0 {
		since = dates[len(dates)-1]
	}

	rows, err := j.router.GetDividends(ctx, inst.Ticker, 1, true, since)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, row := range rows {
		inserted, err := j.dividends.Insert(ctx, &store.Dividend{
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

	j.lastDividendCheck[inst.ID] = j.now()
	return added, nil
}

// refreshInfo updates the name, the inferred payout cadence and, when
// previously unknown, the inception date
func (j *ReconciliationJob) refreshInfo(ctx context.Context, inst *store.Instrument) error {
	merged, err := j.router.FetchAll(ctx, inst.Ticker)
	if err != nil {
		return err
	}

	name := inst.Name
	var inception *time.Time
	if merged.Profile != nil {
		if merged.Profile.Name != "" {
			name = merged.Profile.Name
		}
		if inst.InceptionDate == nil {
			inception = merged.Profile.IPODate
		}
	}

	paymentDates, err := j.dividends.ListPaymentDates(ctx, inst.ID)
	if err != nil {
		return err
	}
	freq := frequency.Infer(paymentDates)

	return j.instruments.UpdateInfo(ctx, inst.ID, name, string(freq), inception)
}

// sweep enforces retention: stale daily prices and aged job logs.
// Monthly and weekly history is never swept.
func (j *ReconciliationJob) sweep(ctx context.Context) {
	cutoff := j.now().UTC().AddDate(0, 0, -j.dailyWindowDays)
	removed, err := j.prices.DeleteOlderThan(ctx, store.GranularityDaily, cutoff)
	if err != nil {
		j.logger.WithError(err).Error("Daily price sweep failed")
	} else if removed > 0 {
		j.logger.WithField("removed", removed).Info("Expired daily prices deleted")
	}

	swept, err := j.jobLogs.Sweep(ctx, j.now().UTC(), j.systemLogRetention, jobLogRetention)
	if err != nil {
		j.logger.WithError(err).Error("Job log sweep failed")
	} else if swept > 0 {
		j.logger.WithField("removed", swept).Info("Old job logs deleted")
	}
}
