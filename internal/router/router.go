// Package router performs priority-ordered provider fallback with
// per-field promotion and response caching.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/internal/splits"
	"github.com/mzurek/divtrack/pkg/logger"
)

// Normalized is one split-adjusted value as the orchestrator stores it
type Normalized struct {
	Date       time.Time
	Raw        float64
	Normalized float64
	Factor     float64
	ExDate     *time.Time
}

// Router routes requests across providers in priority order. Every
// provider call passes the quota ledger first; a denied provider is
// skipped for this request and retried next cycle.
type Router struct {
	providers []market.Provider
	admitter  market.Admitter
	cache     *Cache
	logger    *logger.Logger
}

// New creates a router over providers in priority order
func New(providers []market.Provider, admitter market.Admitter, cache *Cache, log *logger.Logger) *Router {
	return &Router{
		providers: providers,
		admitter:  admitter,
		cache:     cache,
		logger:    log.WithField("module", "router"),
	}
}

// Cache exposes the response cache for maintenance jobs
func (r *Router) Cache() *Cache {
	return r.cache
}

// attempt runs fn against providers in priority order until one
// succeeds. Quota denials and unsupported kinds fall through; the
// returned error distinguishes quota exhaustion from upstream failure.
func (r *Router) attempt(ctx context.Context, ticker, field string, fn func(market.Provider) error) error {
	var lastErr error
	allQuota := true
	attempted := false

	for _, p := range r.providers {
		if err := r.admitter.Admit(ctx, p.ID()); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"ticker":   ticker,
				"field":    field,
				"provider": p.ID(),
			}).Warn("Provider skipped by quota ledger")
			lastErr = err
			continue
		}

		attempted = true
		err := fn(p)
		if err == nil {
			return nil
		}
		if errors.Is(err, market.ErrUnsupported) {
			continue
		}

		allQuota = false
		lastErr = err
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"ticker":   ticker,
			"field":    field,
			"provider": p.ID(),
		}).Warn("Provider fetch failed")
	}

	if lastErr == nil {
		// every provider reported the kind unsupported
		return errs.Newf(errs.KindUpstreamUnavailable, "no provider serves %s", field)
	}
	if !attempted && allQuota {
		return errs.Wrap(errs.KindQuotaExhausted, "all providers denied by quota ledger", lastErr)
	}
	return errs.Wrap(errs.KindUpstreamUnavailable, "all providers failed for "+field, lastErr)
}

// FetchAll fetches the merged per-ticker view with per-field promotion:
// the primary result is taken first and each still-missing field is
// promoted from the next provider in line. The merged result is cached.
func (r *Router) FetchAll(ctx context.Context, ticker string) (*market.Merged, error) {
	if cached, ok := r.cache.Get(ctx, ticker); ok {
		return cached, nil
	}

	merged := &market.Merged{
		Sources:   make(map[string]string),
		FetchedAt: time.Now().UTC(),
	}

	for _, p := range r.providers {
		if merged.Complete() && len(merged.Splits) > 0 && len(merged.Dividends) > 0 {
			break
		}

		if err := r.admitter.Admit(ctx, p.ID()); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"ticker":   ticker,
				"provider": p.ID(),
			}).Warn("Provider skipped by quota ledger")
			continue
		}

		if merged.Profile == nil {
			if profile, err := p.Profile(ctx, ticker); err == nil {
				merged.Profile = profile
				merged.Sources["profile"] = p.ID()
				if profile.Price != nil && merged.Price == nil {
					merged.Price = profile.Price
					merged.Sources["price"] = p.ID()
				}
			} else if !errors.Is(err, market.ErrUnsupported) {
				r.logger.WithError(err).WithField("provider", p.ID()).Debug("Profile fetch failed")
			}
		}

		if merged.Price == nil {
			if price, err := p.Quote(ctx, ticker); err == nil {
				merged.Price = &price
				merged.Sources["price"] = p.ID()
			} else if !errors.Is(err, market.ErrUnsupported) {
				r.logger.WithError(err).WithField("provider", p.ID()).Debug("Quote fetch failed")
			}
		}

		if merged.Dividends == nil {
			if dividends, err := p.Dividends(ctx, ticker, maxDividendYears, time.Time{}); err == nil {
				merged.Dividends = dividends
				merged.Sources["dividends"] = p.ID()
			} else if !errors.Is(err, market.ErrUnsupported) {
				r.logger.WithError(err).WithField("provider", p.ID()).Debug("Dividend fetch failed")
			}
		}

		if merged.Splits == nil {
			if splitRows, err := p.Splits(ctx, ticker); err == nil {
				merged.Splits = splitRows
				merged.Sources["splits"] = p.ID()
			} else if !errors.Is(err, market.ErrUnsupported) {
				r.logger.WithError(err).WithField("provider", p.ID()).Debug("Split fetch failed")
			}
		}
	}

	if merged.Price == nil {
		return nil, errs.Newf(errs.KindUpstreamUnavailable, "no provider returned a current price for %s", ticker)
	}

	r.cache.Put(ctx, ticker, merged)
	return merged, nil
}

// maxDividendYears bounds the dividend backfill window
const maxDividendYears = 20

// GetQuote fetches the current price, reporting the serving provider
func (r *Router) GetQuote(ctx context.Context, ticker string) (float64, string, error) {
	var price float64
	var source string

	err := r.attempt(ctx, ticker, "quote", func(p market.Provider) error {
		v, err := p.Quote(ctx, ticker)
		if err != nil {
			return err
		}
		price = v
		source = p.ID()
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	return price, source, nil
}

// GetSplits fetches the split history, merging the seed table in.
// Provider rows win for duplicate dates. An empty result is valid.
func (r *Router) GetSplits(ctx context.Context, ticker string) ([]market.SplitRow, error) {
	var reported []market.SplitRow

	err := r.attempt(ctx, ticker, "splits", func(p market.Provider) error {
		rows, err := p.Splits(ctx, ticker)
		if err != nil {
			return err
		}
		reported = rows
		return nil
	})
	if err != nil {
		// Splits are optional; the seed still applies
		if errs.Is(err, errs.KindQuotaExhausted) {
			return nil, err
		}
		reported = nil
	}

	seen := make(map[string]bool, len(reported))
	for _, row := range reported {
		seen[row.Date.Format("2006-01-02")] = true
	}
	for _, row := range splits.Seed(ticker) {
		if !seen[row.Date.Format("2006-01-02")] {
			reported = append(reported, row)
		}
	}

	return reported, nil
}

// normalizeRows applies the split set when requested
func (r *Router) normalizeRows(ctx context.Context, ticker string, rows []market.PriceRow, normalize bool) ([]Normalized, error) {
	var splitSet []market.SplitRow
	if normalize {
		var err error
		splitSet, err = r.GetSplits(ctx, ticker)
		if err != nil {
			return nil, err
		}
	}

	out := make([]Normalized, 0, len(rows))
	for _, row := range rows {
		normalized, factor := splits.Normalize(row.Close, splitSet, row.Date)
		out = append(out, Normalized{
			Date:       row.Date,
			Raw:        row.Close,
			Normalized: normalized,
			Factor:     factor,
		})
	}
	return out, nil
}

// GetMonthly fetches monthly closes going back the given number of years
func (r *Router) GetMonthly(ctx context.Context, ticker string, years int, normalize bool) ([]Normalized, error) {
	var rows []market.PriceRow
	err := r.attempt(ctx, ticker, "monthly", func(p market.Provider) error {
		fetched, err := p.MonthlyPrices(ctx, ticker, years)
		if err != nil {
			return err
		}
		rows = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.normalizeRows(ctx, ticker, rows, normalize)
}

// GetWeekly fetches weekly closes going back the given number of years
func (r *Router) GetWeekly(ctx context.Context, ticker string, years int, normalize bool) ([]Normalized, error) {
	var rows []market.PriceRow
	err := r.attempt(ctx, ticker, "weekly", func(p market.Provider) error {
		fetched, err := p.WeeklyPrices(ctx, ticker, years)
		if err != nil {
			return err
		}
		rows = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.normalizeRows(ctx, ticker, rows, normalize)
}

// GetDaily fetches daily closes going back the given number of days
func (r *Router) GetDaily(ctx context.Context, ticker string, days int, normalize bool) ([]Normalized, error) {
	var rows []market.PriceRow
	err := r.attempt(ctx, ticker, "daily", func(p market.Provider) error {
		fetched, err := p.DailyPrices(ctx, ticker, days)
		if err != nil {
			return err
		}
		rows = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.normalizeRows(ctx, ticker, rows, normalize)
}

// GetDividends fetches dividend history. since may be zero; an empty
// result is not an error.
func (r *Router) GetDividends(ctx context.Context, ticker string, years int, normalize bool, since time.Time) ([]Normalized, error) {
	var rows []market.DividendRow
	err := r.attempt(ctx, ticker, "dividends", func(p market.Provider) error {
		fetched, err := p.Dividends(ctx, ticker, years, since)
		if err != nil {
			return err
		}
		rows = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	var splitSet []market.SplitRow
	if normalize {
		splitSet, err = r.GetSplits(ctx, ticker)
		if err != nil {
			return nil, err
		}
	}

	out := make([]Normalized, 0, len(rows))
	for _, row := range rows {
		normalized, factor := splits.Normalize(row.Amount, splitSet, row.PaymentDate)
		out = append(out, Normalized{
			Date:       row.PaymentDate,
			Raw:        row.Amount,
			Normalized: normalized,
			Factor:     factor,
			ExDate:     row.ExDate,
		})
	}
	return out, nil
}
