package splits

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// Registry owns the stored split set of each instrument and keeps every
// dependent price and dividend row normalized against it.
type Registry struct {
	pool         *pgxpool.Pool
	splitRepo    *store.SplitRepository
	priceRepo    *store.PriceRepository
	dividendRepo *store.DividendRepository
	logger       *logger.Logger
}

// NewRegistry creates a new split registry
func NewRegistry(
	pool *pgxpool.Pool,
	splitRepo *store.SplitRepository,
	priceRepo *store.PriceRepository,
	dividendRepo *store.DividendRepository,
	log *logger.Logger,
) *Registry {
	return &Registry{
		pool:         pool,
		splitRepo:    splitRepo,
		priceRepo:    priceRepo,
		dividendRepo: dividendRepo,
		logger:       log.WithField("module", "splits"),
	}
}

// Known returns the stored split set as provider rows, date ascending
func (r *Registry) Known(ctx context.Context, instrumentID int64) ([]market.SplitRow, error) {
	events, err := r.splitRepo.ListByInstrument(ctx, instrumentID)
	if err != nil {
		return nil, err
	}

	rows := make([]market.SplitRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, market.SplitRow{Date: e.Date, Ratio: e.Ratio, Description: e.Description})
	}
	return rows, nil
}

// Sync merges provider-reported splits plus the seed table into the
// stored set. Provider rows are inserted first so they win over seeds
// for the same date. Any new event triggers a full renormalization.
// Returns the number of newly discovered splits.
func (r *Registry) Sync(ctx context.Context, instrumentID int64, ticker string, reported []market.SplitRow) (int, error) {
	discovered := 0

	insert := func(row market.SplitRow) error {
		if row.Ratio <= 0 {
			r.logger.WithFields(map[string]interface{}{
				"ticker": ticker,
				"date":   row.Date.Format("2006-01-02"),
				"ratio":  row.Ratio,
			}).Warn("Ignoring split with non-positive ratio")
			return nil
		}
		inserted, err := r.splitRepo.Insert(ctx, &store.SplitEvent{
			InstrumentID: instrumentID,
			Date:         row.Date,
			Ratio:        row.Ratio,
			Description:  row.Description,
		})
		if err != nil {
			return err
		}
		if inserted {
			discovered++
			r.logger.WithFields(map[string]interface{}{
				"ticker": ticker,
				"date":   row.Date.Format("2006-01-02"),
				"ratio":  row.Ratio,
			}).Info("New split discovered")
		}
		return nil
	}

	for _, row := range reported {
		if err := insert(row); err != nil {
			return discovered, err
		}
	}
	for _, row := range Seed(ticker) {
		if err := insert(row); err != nil {
			return discovered, err
		}
	}

	if discovered > 0 {
		if err := r.RenormalizeAll(ctx, instrumentID); err != nil {
			return discovered, fmt.Errorf("renormalize after split discovery: %w", err)
		}
	}

	return discovered, nil
}

// RenormalizeAll recomputes split factor and normalized value for every
// stored dividend and price row of the instrument in one transaction.
// On any error the transaction rolls back and the instrument keeps its
// last consistent state.
func (r *Registry) RenormalizeAll(ctx context.Context, instrumentID int64) error {
	splitSet, err := r.Known(ctx, instrumentID)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin renormalize tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := 0

	for _, g := range []store.Granularity{store.GranularityMonthly, store.GranularityWeekly, store.GranularityDaily} {
		points, err := r.priceRepo.ListTx(ctx, tx, g, instrumentID)
		if err != nil {
			return err
		}
		for _, p := range points {
			normalized, factor := Normalize(p.Raw, splitSet, p.Date)
			if err := r.priceRepo.UpdateNormalizationTx(ctx, tx, g, p.ID, normalized, factor); err != nil {
				return err
			}
			updated++
		}
	}

	dividends, err := r.dividendRepo.ListTx(ctx, tx, instrumentID)
	if err != nil {
		return err
	}
	for _, d := range dividends {
		normalized, factor := Normalize(d.Raw, splitSet, d.PaymentDate)
		if err := r.dividendRepo.UpdateNormalizationTx(ctx, tx, d.ID, normalized, factor); err != nil {
			return err
		}
		updated++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit renormalize tx: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"instrument_id": instrumentID,
		"splits":        len(splitSet),
		"rows_updated":  updated,
	}).Info("Renormalization completed")

	return nil
}
