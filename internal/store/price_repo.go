package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzurek/divtrack/internal/errs"
)

// rawTolerance is the relative tolerance for treating two raw values as
// the same number when re-ingesting an existing row.
const rawTolerance = 1e-9

// sameRaw compares raw values within the relative tolerance
func sameRaw(a, b float64) bool {
	return math.Abs(a-b) <= rawTolerance*math.Max(math.Max(math.Abs(a), math.Abs(b)), 1)
}

// PriceRepository stores close series for all three granularities
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

func tableFor(g Granularity) (string, error) {
	switch g {
	case GranularityMonthly:
		return "monthly_prices", nil
	case GranularityWeekly:
		return "weekly_prices", nil
	case GranularityDaily:
		return "daily_prices", nil
	default:
		return "", errs.InvalidInput("unknown granularity %q", g)
	}
}

// Insert adds a row only when (instrument, date) is absent.
// Returns whether a row was inserted.
func (r *PriceRepository) Insert(ctx context.Context, g Granularity, p *PricePoint) (bool, error) {
	table, err := tableFor(g)
	if err != nil {
		return false, err
	}

	var tag int64
	if g == GranularityWeekly {
		isoYear, isoWeek := p.Date.ISOWeek()
		ct, err := r.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (instrument_id, price_date, iso_year, iso_week, raw_close, normalized_close, split_factor)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (instrument_id, price_date) DO NOTHING
		`, table), p.InstrumentID, p.Date, isoYear, isoWeek, p.Raw, p.Normalized, p.SplitFactor)
		if err != nil {
			return false, fmt.Errorf("insert %s price: %w", g, err)
		}
		tag = ct.RowsAffected()
	} else {
		ct, err := r.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (instrument_id, price_date, raw_close, normalized_close, split_factor)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (instrument_id, price_date) DO NOTHING
		`, table), p.InstrumentID, p.Date, p.Raw, p.Normalized, p.SplitFactor)
		if err != nil {
			return false, fmt.Errorf("insert %s price: %w", g, err)
		}
		tag = ct.RowsAffected()
	}

	return tag > 0, nil
}

// Upsert inserts a row, or touches the existing one when the raw value
// matches. A differing raw value on an existing row is a conflict; raw
// history is never rewritten silently.
func (r *PriceRepository) Upsert(ctx context.Context, g Granularity, p *PricePoint) error {
	inserted, err := r.Insert(ctx, g, p)
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}

	table, _ := tableFor(g)
	var existingRaw float64
	err = r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT raw_close FROM %s WHERE instrument_id = $1 AND price_date = $2`, table),
		p.InstrumentID, p.Date).Scan(&existingRaw)
	if err != nil {
		return fmt.Errorf("read existing %s price: %w", g, err)
	}

	if !sameRaw(existingRaw, p.Raw) {
		return errs.Newf(errs.KindConflict,
			"%s price for instrument %d at %s: stored raw %.6f differs from incoming %.6f",
			g, p.InstrumentID, p.Date.Format("2006-01-02"), existingRaw, p.Raw)
	}

	_, err = r.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET updated_at = now() WHERE instrument_id = $1 AND price_date = $2`, table),
		p.InstrumentID, p.Date)
	if err != nil {
		return fmt.Errorf("touch %s price: %w", g, err)
	}
	return nil
}

// UpsertCurrent overwrites the row for a live (today's) price bar. Only
// the intraday refresh job uses this; historical rows go through Upsert.
func (r *PriceRepository) UpsertCurrent(ctx context.Context, g Granularity, p *PricePoint) error {
	table, err := tableFor(g)
	if err != nil {
		return err
	}

	if g == GranularityWeekly {
		isoYear, isoWeek := p.Date.ISOWeek()
		_, err = r.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (instrument_id, price_date, iso_year, iso_week, raw_close, normalized_close, split_factor)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (instrument_id, price_date) DO UPDATE SET
				raw_close = EXCLUDED.raw_close,
				normalized_close = EXCLUDED.normalized_close,
				split_factor = EXCLUDED.split_factor,
				updated_at = now()
		`, table), p.InstrumentID, p.Date, isoYear, isoWeek, p.Raw, p.Normalized, p.SplitFactor)
	} else {
		_, err = r.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (instrument_id, price_date, raw_close, normalized_close, split_factor)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (instrument_id, price_date) DO UPDATE SET
				raw_close = EXCLUDED.raw_close,
				normalized_close = EXCLUDED.normalized_close,
				split_factor = EXCLUDED.split_factor,
				updated_at = now()
		`, table), p.InstrumentID, p.Date, p.Raw, p.Normalized, p.SplitFactor)
	}
	if err != nil {
		return fmt.Errorf("upsert current %s price: %w", g, err)
	}
	return nil
}

// List returns the full series in ascending date order
func (r *PriceRepository) List(ctx context.Context, g Granularity, instrumentID int64) ([]*PricePoint, error) {
	table, err := tableFor(g)
	if err != nil {
		return nil, err
	}

	cols := `id, instrument_id, price_date, raw_close, normalized_close, split_factor`
	if g == GranularityWeekly {
		cols += `, iso_year, iso_week`
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE instrument_id = $1 ORDER BY price_date ASC`, cols, table),
		instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list %s prices: %w", g, err)
	}
	defer rows.Close()

	var points []*PricePoint
	for rows.Next() {
		var p PricePoint
		if g == GranularityWeekly {
			err = rows.Scan(&p.ID, &p.InstrumentID, &p.Date, &p.Raw, &p.Normalized, &p.SplitFactor, &p.ISOYear, &p.ISOWeek)
		} else {
			err = rows.Scan(&p.ID, &p.InstrumentID, &p.Date, &p.Raw, &p.Normalized, &p.SplitFactor)
		}
		if err != nil {
			return nil, err
		}
		points = append(points, &p)
	}
	return points, rows.Err()
}

// ListDates returns only the stored dates in ascending order; the
// completeness auditor works on dates alone.
func (r *PriceRepository) ListDates(ctx context.Context, g Granularity, instrumentID int64) ([]time.Time, error) {
	table, err := tableFor(g)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT price_date FROM %s WHERE instrument_id = $1 ORDER BY price_date ASC`, table),
		instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list %s price dates: %w", g, err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Latest returns the newest row, or not_found for an empty series
func (r *PriceRepository) Latest(ctx context.Context, g Granularity, instrumentID int64) (*PricePoint, error) {
	table, err := tableFor(g)
	if err != nil {
		return nil, err
	}

	var p PricePoint
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, instrument_id, price_date, raw_close, normalized_close, split_factor
		FROM %s WHERE instrument_id = $1 ORDER BY price_date DESC LIMIT 1`, table),
		instrumentID).Scan(&p.ID, &p.InstrumentID, &p.Date, &p.Raw, &p.Normalized, &p.SplitFactor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("no %s prices for instrument %d", g, instrumentID)
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s price: %w", g, err)
	}
	return &p, nil
}

// ListTx reads the full series inside a transaction for renormalization
func (r *PriceRepository) ListTx(ctx context.Context, tx pgx.Tx, g Granularity, instrumentID int64) ([]*PricePoint, error) {
	table, err := tableFor(g)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(`
		SELECT id, instrument_id, price_date, raw_close, normalized_close, split_factor
		FROM %s WHERE instrument_id = $1 ORDER BY price_date ASC`, table),
		instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list %s prices in tx: %w", g, err)
	}
	defer rows.Close()

	var points []*PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.ID, &p.InstrumentID, &p.Date, &p.Raw, &p.Normalized, &p.SplitFactor); err != nil {
			return nil, err
		}
		points = append(points, &p)
	}
	return points, rows.Err()
}

// UpdateNormalizationTx rewrites the derived columns of one row
func (r *PriceRepository) UpdateNormalizationTx(ctx context.Context, tx pgx.Tx, g Granularity, rowID int64, normalized, factor float64) error {
	table, err := tableFor(g)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET normalized_close = $2, split_factor = $3, updated_at = now() WHERE id = $1`, table),
		rowID, normalized, factor)
	if err != nil {
		return fmt.Errorf("update %s normalization: %w", g, err)
	}
	return nil
}

// DeleteOlderThan sweeps rows older than the cutoff. Only the daily
// table may be swept; historical monthly and weekly series are permanent.
func (r *PriceRepository) DeleteOlderThan(ctx context.Context, g Granularity, cutoff time.Time) (int64, error) {
	if g != GranularityDaily {
		return 0, errs.InvalidInput("retention sweep refused: %s prices are never deleted", g)
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM daily_prices WHERE price_date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep daily prices: %w", err)
	}
	return tag.RowsAffected(), nil
}
