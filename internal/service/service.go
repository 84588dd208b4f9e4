// Package service is the transport-agnostic operations surface. The
// HTTP handlers and the CLI commands both call into it.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/mzurek/divtrack/internal/completion"
	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/frequency"
	"github.com/mzurek/divtrack/internal/quota"
	"github.com/mzurek/divtrack/internal/router"
	"github.com/mzurek/divtrack/internal/scheduler"
	"github.com/mzurek/divtrack/internal/splits"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// Service bundles the repositories and engines behind the exposed
// operations
type Service struct {
	instruments  *store.InstrumentRepository
	prices       *store.PriceRepository
	dividends    *store.DividendRepository
	jobLogs      *store.JobLogRepository
	taxRates     *store.TaxRateRepository
	router       *router.Router
	orchestrator *completion.Orchestrator
	registry     *splits.Registry
	ledger       *quota.Ledger
	scheduler    *scheduler.Scheduler
	logger       *logger.Logger
	now          func() time.Time
}

// Deps carries everything a Service needs
type Deps struct {
	Instruments  *store.InstrumentRepository
	Prices       *store.PriceRepository
	Dividends    *store.DividendRepository
	JobLogs      *store.JobLogRepository
	TaxRates     *store.TaxRateRepository
	Router       *router.Router
	Orchestrator *completion.Orchestrator
	Registry     *splits.Registry
	Ledger       *quota.Ledger
	Scheduler    *scheduler.Scheduler
	Logger       *logger.Logger
}

// New creates the service
func New(d Deps) *Service {
	return &Service{
		instruments:  d.Instruments,
		prices:       d.Prices,
		dividends:    d.Dividends,
		jobLogs:      d.JobLogs,
		taxRates:     d.TaxRates,
		router:       d.Router,
		orchestrator: d.Orchestrator,
		registry:     d.Registry,
		ledger:       d.Ledger,
		scheduler:    d.Scheduler,
		logger:       d.Logger.WithField("module", "service"),
		now:          time.Now,
	}
}

// normalizeTicker uppercases and validates user input
func normalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if err := store.ValidateTicker(t); err != nil {
		return "", err
	}
	return t, nil
}

// AddInstrument registers a ticker. At least one provider must return
// a current price or the instrument is rejected; the historical series
// are back-filled immediately afterwards, best effort.
func (s *Service) AddInstrument(ctx context.Context, ticker string) (*store.Instrument, error) {
	normalized, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	merged, err := s.router.FetchAll(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if merged.Price == nil {
		return nil, errs.Newf(errs.KindUpstreamUnavailable, "no provider returned a price for %s", normalized)
	}

	inst := &store.Instrument{
		Ticker:          normalized,
		PayoutFrequency: string(frequency.Unknown),
		CurrentPrice:    merged.Price,
	}
	if merged.Profile != nil {
		inst.Name = merged.Profile.Name
		inst.InceptionDate = merged.Profile.IPODate
	}
	if len(merged.Dividends) > 0 {
		dates := make([]time.Time, 0, len(merged.Dividends))
		for _, d := range merged.Dividends {
			dates = append(dates, d.PaymentDate)
		}
		inst.PayoutFrequency = string(frequency.Infer(dates))
	}

	created, err := s.instruments.Create(ctx, inst)
	if err != nil {
		return nil, err
	}

	// initial back-fill; the nightly job repairs anything left over
	if _, err := s.orchestrator.Run(ctx, created); err != nil {
		s.logger.WithError(err).WithField("ticker", normalized).Warn("Initial back-fill incomplete")
	}
	if reported, err := s.router.GetSplits(ctx, normalized); err == nil {
		if _, err := s.registry.Sync(ctx, created.ID, normalized, reported); err != nil {
			s.logger.WithError(err).WithField("ticker", normalized).Warn("Initial split sync failed")
		}
	}

	return s.instruments.GetByTicker(ctx, normalized)
}

// DeleteInstrument removes a ticker and cascades all its series
func (s *Service) DeleteInstrument(ctx context.Context, ticker string) error {
	normalized, err := normalizeTicker(ticker)
	if err != nil {
		return err
	}
	if err := s.instruments.Delete(ctx, normalized); err != nil {
		return err
	}
	s.router.Cache().Invalidate(ctx, normalized)
	return nil
}

// ListInstruments returns all tracked instruments
func (s *Service) ListInstruments(ctx context.Context) ([]*store.Instrument, error) {
	return s.instruments.List(ctx)
}

// GetInstrument returns one tracked instrument
func (s *Service) GetInstrument(ctx context.Context, ticker string) (*store.Instrument, error) {
	normalized, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	return s.instruments.GetByTicker(ctx, normalized)
}

// UpdateReport summarizes one on-demand instrument update
type UpdateReport struct {
	Ticker     string             `json:"ticker"`
	Completion *completion.Result `json:"completion"`
	SplitsNew  int                `json:"splits_discovered"`
	DurationMS int64              `json:"duration_ms"`
}

// UpdateInstrument refreshes one instrument on demand: basic info,
// completion and split sync. force drops the cached provider response
// first so the refresh hits the providers.
func (s *Service) UpdateInstrument(ctx context.Context, ticker string, force bool) (*UpdateReport, error) {
	normalized, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	inst, err := s.instruments.GetByTicker(ctx, normalized)
	if err != nil {
		return nil, err
	}

	started := s.now()
	if force {
		s.router.Cache().Invalidate(ctx, normalized)
	}

	if merged, err := s.router.FetchAll(ctx, normalized); err == nil && merged.Profile != nil {
		name := inst.Name
		if merged.Profile.Name != "" {
			name = merged.Profile.Name
		}
		var inception *time.Time
		if inst.InceptionDate == nil {
			inception = merged.Profile.IPODate
		}
		dates, _ := s.dividends.ListPaymentDates(ctx, inst.ID)
		if err := s.instruments.UpdateInfo(ctx, inst.ID, name, string(frequency.Infer(dates)), inception); err != nil {
			return nil, err
		}
	}

	result, err := s.orchestrator.Run(ctx, inst)
	if err != nil {
		return nil, err
	}

	discovered := 0
	if reported, err := s.router.GetSplits(ctx, normalized); err == nil {
		discovered, err = s.registry.Sync(ctx, inst.ID, normalized, reported)
		if err != nil {
			return nil, err
		}
	}

	return &UpdateReport{
		Ticker:     normalized,
		Completion: result,
		SplitsNew:  discovered,
		DurationMS: s.now().Sub(started).Milliseconds(),
	}, nil
}
