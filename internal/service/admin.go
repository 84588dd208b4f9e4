package service

import (
	"context"
	"errors"

	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/quota"
	"github.com/mzurek/divtrack/internal/scheduler"
	"github.com/mzurek/divtrack/internal/store"
)

// RunJob triggers a scheduled job by name, outside its schedule
func (s *Service) RunJob(ctx context.Context, name string) error {
	if err := s.scheduler.RunJob(name); err != nil {
		if errors.Is(err, scheduler.ErrJobRunning) {
			return errs.Wrap(errs.KindConflict, "job already running", err)
		}
		return errs.Wrap(errs.KindNotFound, "unknown job", err)
	}
	return nil
}

// JobStats returns execution statistics for all registered jobs
func (s *Service) JobStats() map[string]scheduler.JobStats {
	return s.scheduler.GetJobStats()
}

// GetQuotaStatus reports every provider's daily quota consumption
func (s *Service) GetQuotaStatus() []quota.Status {
	return s.ledger.StatusAll()
}

// GetJobLogs returns job log entries matching the filter
func (s *Service) GetJobLogs(ctx context.Context, filter store.JobLogFilter) ([]*store.JobLogEntry, error) {
	return s.jobLogs.List(ctx, filter)
}

// GetTaxRate returns the active withholding rate, or nil when none is
// configured
func (s *Service) GetTaxRate(ctx context.Context) (*store.TaxRate, error) {
	return s.taxRates.GetActive(ctx)
}

// SetTaxRate activates a new withholding rate, deactivating any other
func (s *Service) SetTaxRate(ctx context.Context, percent float64) (*store.TaxRate, error) {
	return s.taxRates.SetActive(ctx, percent)
}
