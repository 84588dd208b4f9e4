package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// monthlyRange builds one row per month from first to last inclusive
func monthlyRange(first, last time.Time) []time.Time {
	var dates []time.Time
	for cur := first; !cur.After(last); cur = cur.AddDate(0, 1, 0) {
		dates = append(dates, cur)
	}
	return dates
}

func newTestAuditor(now time.Time) *Auditor {
	a := New(15, 365)
	a.now = func() time.Time { return now }
	return a
}

func TestAuditMonthly_InceptionCoverage(t *testing.T) {
	now := day(2025, 1, 10)
	a := newTestAuditor(now)

	inception := day(2019, 3, 15)

	// rows cover 2020-01 through 2024-12: 60 months of the ~71 expected
	rows := monthlyRange(day(2020, 1, 1), day(2024, 12, 1))
	require.Len(t, rows, 60)

	report := a.AuditMonthly(rows, &inception)
	assert.False(t, report.Complete)
	assert.InDelta(t, 5.0, report.SpanYears, 0.1)
	assert.InDelta(t, 0.85, report.CoverageRatio, 0.03)
	assert.Equal(t, 0, report.MissingCount, "no gaps between oldest and newest")

	// back-filled to inception the coverage clears the bar
	full := monthlyRange(day(2019, 3, 1), day(2024, 12, 1))
	report = a.AuditMonthly(full, &inception)
	assert.True(t, report.Complete)
	assert.GreaterOrEqual(t, report.CoverageRatio, 0.9)
}

func TestAuditMonthly_GapDetected(t *testing.T) {
	a := newTestAuditor(day(2025, 1, 10))

	rows := monthlyRange(day(2024, 1, 1), day(2024, 12, 1))
	// drop June
	rows = append(rows[:5], rows[6:]...)

	inception := day(2024, 1, 1)
	report := a.AuditMonthly(rows, &inception)
	assert.Equal(t, 1, report.MissingCount)
	assert.Equal(t, "2024-06", report.Missing[0])
}

func TestAuditMonthly_NoInceptionUsesHistoryWindow(t *testing.T) {
	now := day(2025, 1, 10)
	a := newTestAuditor(now)

	// 15 years of complete history satisfies the fallback target
	rows := monthlyRange(day(2010, 1, 1), day(2025, 1, 1))
	report := a.AuditMonthly(rows, nil)
	assert.True(t, report.Complete)

	// five years does not
	report = a.AuditMonthly(monthlyRange(day(2020, 1, 1), day(2025, 1, 1)), nil)
	assert.False(t, report.Complete)
}

func TestAuditDaily(t *testing.T) {
	now := day(2025, 1, 10)
	a := newTestAuditor(now)

	// weekday-only rows covering the full window, ending today
	var rows []time.Time
	for cur := now.AddDate(0, 0, -365); !cur.After(now); cur = cur.AddDate(0, 0, 1) {
		if wd := cur.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		rows = append(rows, cur)
	}
	if rows[len(rows)-1] != now {
		rows = append(rows, now)
	}

	report := a.AuditDaily(rows)
	assert.True(t, report.Complete)

	// without today's row the series is stale
	stale := rows[:len(rows)-1]
	report = a.AuditDaily(stale)
	assert.False(t, report.Complete)
}

func TestAuditDaily_GapFails(t *testing.T) {
	now := day(2025, 1, 10)
	a := newTestAuditor(now)

	var rows []time.Time
	for cur := now.AddDate(0, 0, -365); !cur.After(now); cur = cur.AddDate(0, 0, 1) {
		rows = append(rows, cur)
	}
	// carve a two-week hole in the middle
	gapped := append(append([]time.Time{}, rows[:100]...), rows[114:]...)

	report := a.AuditDaily(gapped)
	assert.False(t, report.Complete)
	assert.Greater(t, report.MissingCount, 0)
}

func TestAuditDividends(t *testing.T) {
	now := day(2025, 1, 10)
	a := newTestAuditor(now)
	inception := day(2020, 2, 1)

	var rows []time.Time
	for y := 2020; y <= 2024; y++ {
		for _, m := range []time.Month{3, 6, 9, 12} {
			rows = append(rows, day(y, m, 15))
		}
	}

	report := a.AuditDividends(rows, &inception)
	assert.True(t, report.Complete)
	assert.Equal(t, 0, report.MissingCount)

	// remove every 2022 payment: the year bucket goes missing
	var gapped []time.Time
	for _, d := range rows {
		if d.Year() != 2022 {
			gapped = append(gapped, d)
		}
	}
	report = a.AuditDividends(gapped, &inception)
	assert.Equal(t, 1, report.MissingCount)
	assert.Equal(t, "2022", report.Missing[0])
}

func TestAudit_SummaryAge(t *testing.T) {
	now := day(2025, 1, 10)
	a := newTestAuditor(now)
	inception := day(2019, 3, 15)

	s := a.Audit(&inception, nil, nil, nil, nil)
	assert.InDelta(t, 5.8, s.AgeYears, 0.1)
	assert.False(t, s.Monthly.Complete)
}

func TestEarliestMissing(t *testing.T) {
	_, ok := EarliestMissing(Report{})
	assert.False(t, ok)

	ts, ok := EarliestMissing(Report{Missing: []string{"2024-06", "2024-07"}})
	require.True(t, ok)
	assert.Equal(t, day(2024, 6, 1), ts)

	ts, ok = EarliestMissing(Report{Missing: []string{"2022"}})
	require.True(t, ok)
	assert.Equal(t, day(2022, 1, 1), ts)
}

func TestEarliestMissing_WeeklyKeys(t *testing.T) {
	ts, ok := EarliestMissing(Report{Missing: []string{"2024-W05", "2024-W06"}})
	require.True(t, ok)
	// Monday of ISO week 5 of 2024
	assert.Equal(t, day(2024, 1, 29), ts)

	// round-trip: the parsed date lands back in the same ISO week
	for _, d := range []time.Time{day(2023, 1, 2), day(2024, 12, 30), day(2026, 8, 28)} {
		ts, ok := EarliestMissing(Report{Missing: []string{weekKey(d)}})
		require.True(t, ok, weekKey(d))
		assert.Equal(t, weekKey(d), weekKey(ts))
	}
}
