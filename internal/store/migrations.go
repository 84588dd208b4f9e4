package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations run in order inside one transaction. Statements are
// idempotent so Migrate can run at every startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		id               BIGSERIAL PRIMARY KEY,
		ticker           TEXT NOT NULL UNIQUE,
		name             TEXT NOT NULL DEFAULT '',
		current_price    DOUBLE PRECISION,
		current_yield    DOUBLE PRECISION,
		payout_frequency TEXT NOT NULL DEFAULT 'unknown',
		inception_date   DATE,
		last_updated     TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS monthly_prices (
		id               BIGSERIAL PRIMARY KEY,
		instrument_id    BIGINT NOT NULL REFERENCES instruments(id) ON DELETE CASCADE,
		price_date       DATE NOT NULL,
		raw_close        DOUBLE PRECISION NOT NULL,
		normalized_close DOUBLE PRECISION NOT NULL,
		split_factor     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (instrument_id, price_date)
	)`,

	`CREATE TABLE IF NOT EXISTS weekly_prices (
		id               BIGSERIAL PRIMARY KEY,
		instrument_id    BIGINT NOT NULL REFERENCES instruments(id) ON DELETE CASCADE,
		price_date       DATE NOT NULL,
		iso_year         INT NOT NULL,
		iso_week         INT NOT NULL,
		raw_close        DOUBLE PRECISION NOT NULL,
		normalized_close DOUBLE PRECISION NOT NULL,
		split_factor     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (instrument_id, price_date)
	)`,

	`CREATE TABLE IF NOT EXISTS daily_prices (
		id               BIGSERIAL PRIMARY KEY,
		instrument_id    BIGINT NOT NULL REFERENCES instruments(id) ON DELETE CASCADE,
		price_date       DATE NOT NULL,
		raw_close        DOUBLE PRECISION NOT NULL,
		normalized_close DOUBLE PRECISION NOT NULL,
		split_factor     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (instrument_id, price_date)
	)`,

	`CREATE TABLE IF NOT EXISTS dividends (
		id                BIGSERIAL PRIMARY KEY,
		instrument_id     BIGINT NOT NULL REFERENCES instruments(id) ON DELETE CASCADE,
		payment_date      DATE NOT NULL,
		ex_date           DATE,
		raw_amount        DOUBLE PRECISION NOT NULL,
		normalized_amount DOUBLE PRECISION NOT NULL,
		split_factor      DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (instrument_id, payment_date)
	)`,

	`CREATE TABLE IF NOT EXISTS split_events (
		id            BIGSERIAL PRIMARY KEY,
		instrument_id BIGINT NOT NULL REFERENCES instruments(id) ON DELETE CASCADE,
		split_date    DATE NOT NULL,
		ratio         DOUBLE PRECISION NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		discovered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (instrument_id, split_date)
	)`,

	`CREATE TABLE IF NOT EXISTS quota_records (
		provider      TEXT PRIMARY KEY,
		current_count INT NOT NULL DEFAULT 0,
		daily_limit   INT NOT NULL,
		last_reset    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS job_logs (
		id                BIGSERIAL PRIMARY KEY,
		logged_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		action            TEXT NOT NULL,
		job_name          TEXT NOT NULL DEFAULT '',
		level             TEXT NOT NULL DEFAULT 'info',
		success           BOOLEAN NOT NULL DEFAULT true,
		execution_time_ms BIGINT NOT NULL DEFAULT 0,
		records_processed INT NOT NULL DEFAULT 0,
		details           TEXT NOT NULL DEFAULT '',
		error             TEXT NOT NULL DEFAULT '',
		metadata          JSONB
	)`,

	`CREATE TABLE IF NOT EXISTS tax_rates (
		id           BIGSERIAL PRIMARY KEY,
		rate_percent DOUBLE PRECISION NOT NULL,
		active       BOOLEAN NOT NULL DEFAULT false,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_monthly_prices_instrument_date
		ON monthly_prices (instrument_id, price_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_weekly_prices_instrument_date
		ON weekly_prices (instrument_id, price_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_prices_instrument_date
		ON daily_prices (instrument_id, price_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_prices_date
		ON daily_prices (price_date)`,
	`CREATE INDEX IF NOT EXISTS idx_dividends_instrument_date
		ON dividends (instrument_id, payment_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_job_logs_logged_at
		ON job_logs (logged_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_job_logs_job_name
		ON job_logs (job_name) WHERE job_name <> ''`,
}

// Migrate creates the schema and applies idempotent seed data
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range migrations {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}

	return nil
}
