package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzurek/divtrack/internal/errs"
	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/pkg/logger"
)

func newTestLedger(t *testing.T, specs []ProviderSpec) *Ledger {
	t.Helper()
	l, err := NewLedger(context.Background(), nil, specs, logger.NewNop())
	require.NoError(t, err)
	return l
}

func TestAdmit_DailyExhaustionAndReset(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, []ProviderSpec{
		{ID: market.ProviderPrimary, DailyLimit: 2},
		{ID: market.ProviderBackup, DailyLimit: 100},
	})

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	for _, state := range l.providers {
		state.lastReset = base
		state.minuteReset = base
	}

	// consume the primary's full daily budget
	require.NoError(t, l.Record(ctx, market.ProviderPrimary))
	require.NoError(t, l.Record(ctx, market.ProviderPrimary))

	err := l.Admit(ctx, market.ProviderPrimary)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindQuotaExhausted))

	// the backup is unaffected
	assert.NoError(t, l.Admit(ctx, market.ProviderBackup))

	// a simulated 24h elapse resets the daily window
	l.now = func() time.Time { return base.Add(24*time.Hour + time.Second) }
	assert.NoError(t, l.Admit(ctx, market.ProviderPrimary))
	assert.Equal(t, 0, l.providers[market.ProviderPrimary].count)
}

func TestAdmit_MinuteLimit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, []ProviderSpec{
		{ID: market.ProviderPrimary, DailyLimit: 250, MinuteLimited: true, MinuteLimit: 5},
	})

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	state := l.providers[market.ProviderPrimary]
	state.lastReset = base
	state.minuteReset = base

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(ctx, market.ProviderPrimary))
		require.NoError(t, l.Record(ctx, market.ProviderPrimary))
	}

	err := l.Admit(ctx, market.ProviderPrimary)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindQuotaExhausted))

	// the minute window clears after 60s; the daily budget still has room
	l.now = func() time.Time { return base.Add(61 * time.Second) }
	assert.NoError(t, l.Admit(ctx, market.ProviderPrimary))
	assert.Equal(t, 5, state.count)
}

func TestAdmit_UnknownProvider(t *testing.T) {
	l := newTestLedger(t, DefaultSpecs())
	err := l.Admit(context.Background(), "nonsense")
	assert.Error(t, err)
}

func TestRecord_NeverExceedsLimitViaAdmit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, []ProviderSpec{{ID: market.ProviderBackup, DailyLimit: 3}})

	accepted := 0
	for i := 0; i < 10; i++ {
		if l.Admit(ctx, market.ProviderBackup) != nil {
			continue
		}
		require.NoError(t, l.Record(ctx, market.ProviderBackup))
		accepted++
	}
	assert.Equal(t, 3, accepted)
}

func TestRecord_RetryAttemptsSaturateAtLimit(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, []ProviderSpec{{ID: market.ProviderBackup, DailyLimit: 2}})

	// one admitted call whose HTTP retries record three attempts
	require.NoError(t, l.Admit(ctx, market.ProviderBackup))
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(ctx, market.ProviderBackup))
	}

	assert.Equal(t, 2, l.providers[market.ProviderBackup].count)

	statuses := l.StatusAll()
	require.Len(t, statuses, 1)
	assert.Equal(t, 2, statuses[0].Count)
	assert.Equal(t, 0, statuses[0].Remaining)

	err := l.Admit(ctx, market.ProviderBackup)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindQuotaExhausted))
}

func TestStatusAll(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, DefaultSpecs())

	require.NoError(t, l.Record(ctx, market.ProviderPrimary))

	statuses := l.StatusAll()
	require.Len(t, statuses, 3)
	assert.Equal(t, market.ProviderPrimary, statuses[0].Provider)
	assert.Equal(t, 1, statuses[0].Count)
	assert.Equal(t, 249, statuses[0].Remaining)
	assert.NotEmpty(t, statuses[0].String())
}
