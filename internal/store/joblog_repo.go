package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// JobLogRepository persists pipeline job log entries
type JobLogRepository struct {
	pool *pgxpool.Pool
}

// NewJobLogRepository creates a new job log repository
func NewJobLogRepository(pool *pgxpool.Pool) *JobLogRepository {
	return &JobLogRepository{pool: pool}
}

// Insert stores one log entry
func (r *JobLogRepository) Insert(ctx context.Context, e *JobLogEntry) error {
	if e.Level == "" {
		e.Level = LogLevelInfo
	}
	loggedAt := e.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO job_logs (logged_at, action, job_name, level, success, execution_time_ms, records_processed, details, error, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, loggedAt, e.Action, e.JobName, e.Level, e.Success,
		e.ExecutionTimeMS, e.RecordsProcessed, e.Details, e.Error, e.Metadata)
	if err != nil {
		return fmt.Errorf("insert job log: %w", err)
	}
	return nil
}

// List returns log entries matching the filter, newest first
func (r *JobLogRepository) List(ctx context.Context, f JobLogFilter) ([]*JobLogEntry, error) {
	var conditions []string
	var args []interface{}

	addArg := func(cond string, val interface{}) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.JobName != "" {
		addArg("job_name = $%d", f.JobName)
	}
	if f.Level != "" {
		addArg("level = $%d", f.Level)
	}
	if f.Action != "" {
		addArg("action = $%d", f.Action)
	}
	if !f.Since.IsZero() {
		addArg("logged_at >= $%d", f.Since)
	}

	query := `
		SELECT id, logged_at, action, job_name, level, success, execution_time_ms, records_processed, details, error, metadata
		FROM job_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY logged_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job logs: %w", err)
	}
	defer rows.Close()

	var entries []*JobLogEntry
	for rows.Next() {
		var e JobLogEntry
		if err := rows.Scan(&e.ID, &e.LoggedAt, &e.Action, &e.JobName, &e.Level, &e.Success,
			&e.ExecutionTimeMS, &e.RecordsProcessed, &e.Details, &e.Error, &e.Metadata); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Sweep deletes expired entries: job-named entries after jobRetention,
// everything else after systemRetention. Returns deleted row count.
func (r *JobLogRepository) Sweep(ctx context.Context, now time.Time, systemRetention, jobRetention time.Duration) (int64, error) {
	systemCutoff := now.Add(-systemRetention)
	jobCutoff := now.Add(-jobRetention)

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM job_logs
		WHERE (job_name = '' AND logged_at < $1)
		   OR (job_name <> '' AND logged_at < $2)
	`, systemCutoff, jobCutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep job logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
