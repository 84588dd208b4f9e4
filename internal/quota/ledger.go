package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// ProviderSpec declares the limits of one provider
type ProviderSpec struct {
	ID            string
	DailyLimit    int
	MinuteLimited bool
	MinuteLimit   int
}

// DefaultSpecs mirrors the upstream provider plans: the primary API is
// both day- and minute-capped, the others only day-capped.
func DefaultSpecs() []ProviderSpec {
	return []ProviderSpec{
		{ID: market.ProviderPrimary, DailyLimit: 250, MinuteLimited: true, MinuteLimit: 5},
		{ID: market.ProviderBackup, DailyLimit: 100},
		{ID: market.ProviderFallback, DailyLimit: 480},
	}
}

const (
	dailyWindow  = 24 * time.Hour
	minuteWindow = time.Minute

	// warnFraction triggers a warning log when the daily count crosses it
	warnFraction = 0.8
)

// providerState is the in-memory view of one provider's counters. The
// daily count and reset instant are persisted; the minute counter is
// process-local only.
type providerState struct {
	mu   sync.Mutex
	spec ProviderSpec

	count     int
	lastReset time.Time

	minuteCount int
	minuteReset time.Time
}

// Ledger is the persisted per-provider admission ledger. Admit checks
// quotas without incrementing; Record accounts one completed call.
type Ledger struct {
	repo      *store.QuotaRepository
	logger    *logger.Logger
	providers map[string]*providerState

	// now is replaceable in tests
	now func() time.Time
}

// NewLedger loads persisted daily counts for the given provider specs
func NewLedger(ctx context.Context, repo *store.QuotaRepository, specs []ProviderSpec, log *logger.Logger) (*Ledger, error) {
	l := &Ledger{
		repo:      repo,
		logger:    log.WithField("module", "quota"),
		providers: make(map[string]*providerState, len(specs)),
		now:       time.Now,
	}

	for _, spec := range specs {
		state := &providerState{spec: spec, lastReset: l.now(), minuteReset: l.now()}

		if repo != nil {
			if err := repo.Ensure(ctx, spec.ID, spec.DailyLimit); err != nil {
				return nil, err
			}
			rec, err := repo.Get(ctx, spec.ID)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				state.count = rec.Count
				state.lastReset = rec.LastReset
			}
		}

		l.providers[spec.ID] = state
	}

	return l, nil
}

// Admit reports whether a call to the provider may proceed. Expired
// windows are reset first; a denial carries the quota_exhausted kind and
// the time remaining until the daily reset.
func (l *Ledger) Admit(ctx context.Context, provider string) error {
	state, ok := l.providers[provider]
	if !ok {
		return errs.Newf(errs.KindInternal, "unknown provider %q", provider)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	now := l.now()

	if now.Sub(state.lastReset) >= dailyWindow {
		state.count = 0
		state.lastReset = now
		l.persistLocked(ctx, state)
	}

	if now.Sub(state.minuteReset) >= minuteWindow {
		state.minuteCount = 0
		state.minuteReset = now
	}

	if state.spec.MinuteLimited && state.minuteCount >= state.spec.MinuteLimit {
		return errs.Newf(errs.KindQuotaExhausted,
			"provider %s minute quota exhausted (%d/%d)",
			provider, state.minuteCount, state.spec.MinuteLimit)
	}

	if state.count >= state.spec.DailyLimit {
		untilReset := dailyWindow - now.Sub(state.lastReset)
		return errs.Newf(errs.KindQuotaExhausted,
			"provider %s daily quota exhausted (%d/%d), resets in %s",
			provider, state.count, state.spec.DailyLimit, untilReset.Round(time.Minute))
	}

	if float64(state.count) >= warnFraction*float64(state.spec.DailyLimit) {
		l.logger.WithFields(map[string]interface{}{
			"provider": provider,
			"count":    state.count,
			"limit":    state.spec.DailyLimit,
		}).Warn("Provider approaching daily quota")
	}

	return nil
}

// Record accounts one completed call against both windows and persists
// the daily count. HTTP retries record every attempt after a single
// admission, so both counters saturate at their limits instead of
// running past them.
func (l *Ledger) Record(ctx context.Context, provider string) error {
	state, ok := l.providers[provider]
	if !ok {
		return errs.Newf(errs.KindInternal, "unknown provider %q", provider)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	now := l.now()
	if now.Sub(state.lastReset) >= dailyWindow {
		state.count = 0
		state.lastReset = now
	}
	if now.Sub(state.minuteReset) >= minuteWindow {
		state.minuteCount = 0
		state.minuteReset = now
	}

	if state.count < state.spec.DailyLimit {
		state.count++
	}
	if !state.spec.MinuteLimited || state.minuteCount < state.spec.MinuteLimit {
		state.minuteCount++
	}
	l.persistLocked(ctx, state)
	return nil
}

// persistLocked writes the daily count; callers hold the provider lock
func (l *Ledger) persistLocked(ctx context.Context, state *providerState) {
	if l.repo == nil {
		return
	}
	if err := l.repo.SetCount(ctx, state.spec.ID, state.count, state.lastReset); err != nil {
		l.logger.WithError(err).WithField("provider", state.spec.ID).Warn("Failed to persist quota count")
	}
}

// Status describes one provider's current quota usage
type Status struct {
	Provider   string        `json:"provider"`
	Count      int           `json:"current_count"`
	DailyLimit int           `json:"daily_limit"`
	Remaining  int           `json:"remaining"`
	ResetsIn   time.Duration `json:"resets_in"`
	LastReset  time.Time     `json:"last_reset"`
}

// StatusAll reports the current usage of every provider
func (l *Ledger) StatusAll() []Status {
	now := l.now()

	statuses := make([]Status, 0, len(l.providers))
	for _, spec := range []string{market.ProviderPrimary, market.ProviderBackup, market.ProviderFallback} {
		state, ok := l.providers[spec]
		if !ok {
			continue
		}
		state.mu.Lock()
		count, lastReset, limit := state.count, state.lastReset, state.spec.DailyLimit
		state.mu.Unlock()

		if now.Sub(lastReset) >= dailyWindow {
			count = 0
			lastReset = now
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		resetsIn := dailyWindow - now.Sub(lastReset)
		if resetsIn < 0 {
			resetsIn = 0
		}

		statuses = append(statuses, Status{
			Provider:   spec,
			Count:      count,
			DailyLimit: limit,
			Remaining:  remaining,
			ResetsIn:   resetsIn,
			LastReset:  lastReset,
		})
	}
	return statuses
}

// String implements a compact status line for CLI output
func (s Status) String() string {
	return fmt.Sprintf("%s: %d/%d used, resets in %s", s.Provider, s.Count, s.DailyLimit, s.ResetsIn.Round(time.Minute))
}
