package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mzurek/divtrack/internal/errs"
)

// TaxRateRepository stores the dividend tax rate. At most one record is
// active; activating a new rate deactivates all others in the same
// transaction.
type TaxRateRepository struct {
	pool *pgxpool.Pool
}

// NewTaxRateRepository creates a new tax rate repository
func NewTaxRateRepository(pool *pgxpool.Pool) *TaxRateRepository {
	return &TaxRateRepository{pool: pool}
}

// GetActive returns the active tax rate, or nil when none is set
func (r *TaxRateRepository) GetActive(ctx context.Context) (*TaxRate, error) {
	var t TaxRate
	err := r.pool.QueryRow(ctx, `
		SELECT id, rate_percent, active, created_at, updated_at
		FROM tax_rates WHERE active = true
		ORDER BY updated_at DESC LIMIT 1`).Scan(&t.ID, &t.Percent, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active tax rate: %w", err)
	}
	return &t, nil
}

// SetActive inserts a new rate and flips it active, deactivating every
// other record, in one transaction.
func (r *TaxRateRepository) SetActive(ctx context.Context, percent float64) (*TaxRate, error) {
	if percent < 0 || percent > 100 {
		return nil, errs.InvalidInput("tax rate %.2f%% out of range [0, 100]", percent)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tax rate tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var t TaxRate
	err = tx.QueryRow(ctx, `
		INSERT INTO tax_rates (rate_percent, active)
		VALUES ($1, false)
		RETURNING id, rate_percent, active, created_at, updated_at
	`, percent).Scan(&t.ID, &t.Percent, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert tax rate: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE tax_rates SET active = false, updated_at = now() WHERE active = true`); err != nil {
		return nil, fmt.Errorf("deactivate tax rates: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE tax_rates SET active = true, updated_at = now() WHERE id = $1`, t.ID); err != nil {
		return nil, fmt.Errorf("activate tax rate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tax rate tx: %w", err)
	}

	t.Active = true
	return &t, nil
}
