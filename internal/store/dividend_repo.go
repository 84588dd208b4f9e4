package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzurek/divtrack/internal/errs"
)

// DividendRepository stores dividend payments
type DividendRepository struct {
	pool *pgxpool.Pool
}

// NewDividendRepository creates a new dividend repository
func NewDividendRepository(pool *pgxpool.Pool) *DividendRepository {
	return &DividendRepository{pool: pool}
}

// Insert adds a dividend only when (instrument, payment date) is absent.
// Returns whether a row was inserted.
func (r *DividendRepository) Insert(ctx context.Context, d *Dividend) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO dividends (instrument_id, payment_date, ex_date, raw_amount, normalized_amount, split_factor)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instrument_id, payment_date) DO NOTHING
	`, d.InstrumentID, d.PaymentDate, d.ExDate, d.Raw, d.Normalized, d.SplitFactor)
	if err != nil {
		return false, fmt.Errorf("insert dividend: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Upsert inserts or touches an existing row; a differing raw amount on
// an existing payment date is a conflict.
func (r *DividendRepository) Upsert(ctx context.Context, d *Dividend) error {
	inserted, err := r.Insert(ctx, d)
	if err != nil {
		return err
	}
	if inserted {
		return nil
	}

	var existingRaw float64
	err = r.pool.QueryRow(ctx,
		`SELECT raw_amount FROM dividends WHERE instrument_id = $1 AND payment_date = $2`,
		d.InstrumentID, d.PaymentDate).Scan(&existingRaw)
	if err != nil {
		return fmt.Errorf("read existing dividend: %w", err)
	}

	if !sameRaw(existingRaw, d.Raw) {
		return errs.Newf(errs.KindConflict,
			"dividend for instrument %d at %s: stored raw %.6f differs from incoming %.6f",
			d.InstrumentID, d.PaymentDate.Format("2006-01-02"), existingRaw, d.Raw)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE dividends SET updated_at = now() WHERE instrument_id = $1 AND payment_date = $2`,
		d.InstrumentID, d.PaymentDate)
	if err != nil {
		return fmt.Errorf("touch dividend: %w", err)
	}
	return nil
}

// List returns all dividends in ascending payment date order. A zero
// limit returns everything; otherwise the most recent rows are returned.
func (r *DividendRepository) List(ctx context.Context, instrumentID int64, limit int) ([]*Dividend, error) {
	query := `
		SELECT id, instrument_id, payment_date, ex_date, raw_amount, normalized_amount, split_factor
		FROM dividends
		WHERE instrument_id = $1
		ORDER BY payment_date ASC
	`
	args := []interface{}{instrumentID}
	if limit > 0 {
		query = `
			SELECT id, instrument_id, payment_date, ex_date, raw_amount, normalized_amount, split_factor
			FROM (
				SELECT id, instrument_id, payment_date, ex_date, raw_amount, normalized_amount, split_factor
				FROM dividends
				WHERE instrument_id = $1
				ORDER BY payment_date DESC
				LIMIT $2
			) recent
			ORDER BY payment_date ASC
		`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dividends: %w", err)
	}
	defer rows.Close()

	var dividends []*Dividend
	for rows.Next() {
		var d Dividend
		if err := rows.Scan(&d.ID, &d.InstrumentID, &d.PaymentDate, &d.ExDate, &d.Raw, &d.Normalized, &d.SplitFactor); err != nil {
			return nil, err
		}
		dividends = append(dividends, &d)
	}
	return dividends, rows.Err()
}

// ListPaymentDates returns payment dates in ascending order
func (r *DividendRepository) ListPaymentDates(ctx context.Context, instrumentID int64) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT payment_date FROM dividends WHERE instrument_id = $1 ORDER BY payment_date ASC`,
		instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list dividend dates: %w", err)
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

// ListTx reads all dividends inside a transaction for renormalization
func (r *DividendRepository) ListTx(ctx context.Context, tx pgx.Tx, instrumentID int64) ([]*Dividend, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, instrument_id, payment_date, ex_date, raw_amount, normalized_amount, split_factor
		FROM dividends WHERE instrument_id = $1 ORDER BY payment_date ASC`,
		instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list dividends in tx: %w", err)
	}
	defer rows.Close()

	var dividends []*Dividend
	for rows.Next() {
		var d Dividend
		if err := rows.Scan(&d.ID, &d.InstrumentID, &d.PaymentDate, &d.ExDate, &d.Raw, &d.Normalized, &d.SplitFactor); err != nil {
			return nil, err
		}
		dividends = append(dividends, &d)
	}
	return dividends, rows.Err()
}

// UpdateNormalizationTx rewrites the derived columns of one dividend
func (r *DividendRepository) UpdateNormalizationTx(ctx context.Context, tx pgx.Tx, rowID int64, normalized, factor float64) error {
	_, err := tx.Exec(ctx,
		`UPDATE dividends SET normalized_amount = $2, split_factor = $3, updated_at = now() WHERE id = $1`,
		rowID, normalized, factor)
	if err != nil {
		return fmt.Errorf("update dividend normalization: %w", err)
	}
	return nil
}
