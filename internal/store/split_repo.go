package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SplitRepository stores discovered split events
type SplitRepository struct {
	pool *pgxpool.Pool
}

// NewSplitRepository creates a new split repository
func NewSplitRepository(pool *pgxpool.Pool) *SplitRepository {
	return &SplitRepository{pool: pool}
}

// Insert records a split event. Ratio and description of an already
// known (instrument, date) pair are kept untouched. Returns whether the
// event was new.
func (r *SplitRepository) Insert(ctx context.Context, s *SplitEvent) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO split_events (instrument_id, split_date, ratio, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instrument_id, split_date) DO NOTHING
	`, s.InstrumentID, s.Date, s.Ratio, s.Description)
	if err != nil {
		return false, fmt.Errorf("insert split event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByInstrument returns all splits in ascending date order
func (r *SplitRepository) ListByInstrument(ctx context.Context, instrumentID int64) ([]*SplitEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, instrument_id, split_date, ratio, description, discovered_at
		FROM split_events WHERE instrument_id = $1 ORDER BY split_date ASC`,
		instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list split events: %w", err)
	}
	defer rows.Close()

	var splits []*SplitEvent
	for rows.Next() {
		var s SplitEvent
		if err := rows.Scan(&s.ID, &s.InstrumentID, &s.Date, &s.Ratio, &s.Description, &s.DiscoveredAt); err != nil {
			return nil, err
		}
		splits = append(splits, &s)
	}
	return splits, rows.Err()
}
