package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzurek/divtrack/internal/errs"
)

// tickerPattern constrains user-supplied tickers: uppercase alphanumeric
// (dot and dash allowed for share classes), at most 20 characters.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,20}$`)

// ValidateTicker checks a user-supplied ticker symbol
func ValidateTicker(ticker string) error {
	if !tickerPattern.MatchString(ticker) {
		return errs.InvalidInput("invalid ticker %q", ticker)
	}
	return nil
}

// InstrumentRepository stores tracked instruments
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

const instrumentColumns = `id, ticker, name, current_price, current_yield,
	payout_frequency, inception_date, last_updated, created_at`

func scanInstrument(row pgx.Row) (*Instrument, error) {
	var inst Instrument
	err := row.Scan(
		&inst.ID, &inst.Ticker, &inst.Name, &inst.CurrentPrice, &inst.CurrentYield,
		&inst.PayoutFrequency, &inst.InceptionDate, &inst.LastUpdated, &inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// Create inserts a new instrument. Duplicate tickers are a conflict.
func (r *InstrumentRepository) Create(ctx context.Context, inst *Instrument) (*Instrument, error) {
	query := `
		INSERT INTO instruments (ticker, name, current_price, current_yield, payout_frequency, inception_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker) DO NOTHING
		RETURNING ` + instrumentColumns

	created, err := scanInstrument(r.pool.QueryRow(ctx, query,
		inst.Ticker, inst.Name, inst.CurrentPrice, inst.CurrentYield,
		inst.PayoutFrequency, inst.InceptionDate,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.KindConflict, "instrument %s already exists", inst.Ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("create instrument: %w", err)
	}
	return created, nil
}

// GetByTicker retrieves an instrument by its ticker
func (r *InstrumentRepository) GetByTicker(ctx context.Context, ticker string) (*Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments WHERE ticker = $1`

	inst, err := scanInstrument(r.pool.QueryRow(ctx, query, ticker))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("instrument %s not found", ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument: %w", err)
	}
	return inst, nil
}

// List returns all instruments ordered by ticker
func (r *InstrumentRepository) List(ctx context.Context) ([]*Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments ORDER BY ticker ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

// Delete removes an instrument; dependent rows cascade
func (r *InstrumentRepository) Delete(ctx context.Context, ticker string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM instruments WHERE ticker = $1`, ticker)
	if err != nil {
		return fmt.Errorf("delete instrument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("instrument %s not found", ticker)
	}
	return nil
}

// UpdateInfo refreshes basic profile fields. Inception date is only set
// when previously null so provider flapping cannot rewrite it.
func (r *InstrumentRepository) UpdateInfo(ctx context.Context, id int64, name, payoutFrequency string, inception *time.Time) error {
	query := `
		UPDATE instruments SET
			name = CASE WHEN $2 <> '' THEN $2 ELSE name END,
			payout_frequency = $3,
			inception_date = COALESCE(inception_date, $4),
			last_updated = now()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, name, payoutFrequency, inception)
	if err != nil {
		return fmt.Errorf("update instrument info: %w", err)
	}
	return nil
}

// UpdateCurrentPrice stores the latest quote and derived yield
func (r *InstrumentRepository) UpdateCurrentPrice(ctx context.Context, id int64, price float64, yield *float64) error {
	query := `
		UPDATE instruments SET
			current_price = $2,
			current_yield = COALESCE($3, current_yield),
			last_updated = now()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, price, yield)
	if err != nil {
		return fmt.Errorf("update current price: %w", err)
	}
	return nil
}

// TouchLastUpdated bumps last_updated without changing any data; used by
// the cache-only pipeline pass when providers are unreachable.
func (r *InstrumentRepository) TouchLastUpdated(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE instruments SET last_updated = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch instrument: %w", err)
	}
	return nil
}
