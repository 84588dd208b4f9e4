package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaRepository persists per-provider daily call counters
type QuotaRepository struct {
	pool *pgxpool.Pool
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(pool *pgxpool.Pool) *QuotaRepository {
	return &QuotaRepository{pool: pool}
}

// Get returns the record for a provider, or nil when none exists yet
func (r *QuotaRepository) Get(ctx context.Context, provider string) (*QuotaRecord, error) {
	var q QuotaRecord
	err := r.pool.QueryRow(ctx, `
		SELECT provider, current_count, daily_limit, last_reset, updated_at
		FROM quota_records WHERE provider = $1`,
		provider).Scan(&q.Provider, &q.Count, &q.DailyLimit, &q.LastReset, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota record: %w", err)
	}
	return &q, nil
}

// Ensure creates the record with a zero count when the provider is new,
// and keeps the configured daily limit current.
func (r *QuotaRepository) Ensure(ctx context.Context, provider string, dailyLimit int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quota_records (provider, current_count, daily_limit, last_reset)
		VALUES ($1, 0, $2, now())
		ON CONFLICT (provider) DO UPDATE SET
			daily_limit = EXCLUDED.daily_limit,
			updated_at = now()
	`, provider, dailyLimit)
	if err != nil {
		return fmt.Errorf("ensure quota record: %w", err)
	}
	return nil
}

// SetCount persists the current daily count and reset instant
func (r *QuotaRepository) SetCount(ctx context.Context, provider string, count int, lastReset time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE quota_records SET current_count = $2, last_reset = $3, updated_at = now()
		WHERE provider = $1
	`, provider, count, lastReset)
	if err != nil {
		return fmt.Errorf("set quota count: %w", err)
	}
	return nil
}

// List returns all quota records ordered by provider id
func (r *QuotaRepository) List(ctx context.Context) ([]*QuotaRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider, current_count, daily_limit, last_reset, updated_at
		FROM quota_records ORDER BY provider ASC`)
	if err != nil {
		return nil, fmt.Errorf("list quota records: %w", err)
	}
	defer rows.Close()

	var records []*QuotaRecord
	for rows.Next() {
		var q QuotaRecord
		if err := rows.Scan(&q.Provider, &q.Count, &q.DailyLimit, &q.LastReset, &q.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, &q)
	}
	return records, rows.Err()
}
