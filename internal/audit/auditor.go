// Package audit measures how complete an instrument's stored history
// is against its inception-date target.
package audit

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// daysPerYear converts calendar spans to fractional years
const daysPerYear = 365.25

// coverageThreshold accepts slightly gappy history when the inception
// date is known, since some providers simply never carried the oldest
// months.
const coverageThreshold = 0.90

// dailySpanSlack tolerates exchange holidays around the daily window
const dailySpanSlack = 5

// Report describes one granularity's completeness
type Report struct {
	Oldest        time.Time
	Newest        time.Time
	SpanYears     float64
	MissingCount  int
	Missing       []string
	CoverageRatio float64
	Complete      bool
}

// Summary aggregates per-granularity reports for one instrument
type Summary struct {
	Monthly   Report
	Weekly    Report
	Daily     Report
	Dividends Report

	AgeYears float64
}

// Auditor holds the window knobs shared by every audit
type Auditor struct {
	maxHistoryYears int
	dailyWindowDays int
	now             func() time.Time
}

// New creates an auditor. maxHistoryYears bounds the target window
// when the inception date is unknown; dailyWindowDays is the expected
// daily retention span.
func New(maxHistoryYears, dailyWindowDays int) *Auditor {
	return &Auditor{
		maxHistoryYears: maxHistoryYears,
		dailyWindowDays: dailyWindowDays,
		now:             time.Now,
	}
}

// TargetStart is the oldest date history should reach: the inception
// date when known, otherwise today minus the history window.
func (a *Auditor) TargetStart(inception *time.Time) time.Time {
	if inception != nil {
		return *inception
	}
	return a.now().UTC().AddDate(0, 0, -a.maxHistoryYears*365)
}

// Audit builds the full summary from stored dates per granularity
func (a *Auditor) Audit(inception *time.Time, monthly, weekly, daily, dividends []time.Time) Summary {
	target := a.TargetStart(inception)
	s := Summary{
		Monthly:   a.AuditMonthly(monthly, inception),
		Weekly:    a.AuditWeekly(weekly, inception),
		Daily:     a.AuditDaily(daily),
		Dividends: a.AuditDividends(dividends, inception),
	}
	s.AgeYears = round2(a.now().UTC().Sub(target).Hours() / 24 / daysPerYear)
	return s
}

// AuditMonthly checks calendar-month buckets. Complete when no month
// is missing and the oldest row reaches the target start, or when the
// inception date is known and coverage is at least 90%.
func (a *Auditor) AuditMonthly(dates []time.Time, inception *time.Time) Report {
	r := baseReport(dates)
	if len(dates) == 0 {
		return r
	}

	target := a.TargetStart(inception)
	present := make(map[string]bool, len(dates))
	for _, d := range dates {
		present[monthKey(d)] = true
	}

	for cur := monthStart(r.Oldest); !cur.After(r.Newest); cur = cur.AddDate(0, 1, 0) {
		if !present[monthKey(cur)] {
			r.Missing = append(r.Missing, monthKey(cur))
		}
	}
	r.MissingCount = len(r.Missing)

	expected := monthsBetween(monthStart(target), monthStart(a.now().UTC())) + 1
	if expected > 0 {
		r.CoverageRatio = round2(float64(len(present)) / float64(expected))
	}

	noGaps := r.MissingCount == 0 && !monthStart(r.Oldest).After(monthStart(target))
	r.Complete = noGaps || (inception != nil && r.CoverageRatio >= coverageThreshold)
	return r
}

// AuditWeekly checks ISO-week buckets under the same rule as monthly
func (a *Auditor) AuditWeekly(dates []time.Time, inception *time.Time) Report {
	r := baseReport(dates)
	if len(dates) == 0 {
		return r
	}

	target := a.TargetStart(inception)
	present := make(map[string]bool, len(dates))
	for _, d := range dates {
		present[weekKey(d)] = true
	}

	for cur := r.Oldest; !cur.After(r.Newest); cur = cur.AddDate(0, 0, 7) {
		if !present[weekKey(cur)] {
			r.Missing = append(r.Missing, weekKey(cur))
		}
	}
	r.MissingCount = len(r.Missing)

	expectedWeeks := int(a.now().UTC().Sub(target).Hours()/24/7) + 1
	if expectedWeeks > 0 {
		r.CoverageRatio = round2(float64(len(present)) / float64(expectedWeeks))
	}

	noGaps := r.MissingCount == 0 && r.Oldest.Sub(target) <= 7*24*time.Hour
	r.Complete = noGaps || (inception != nil && r.CoverageRatio >= coverageThreshold)
	return r
}

// AuditDaily checks the rolling daily window: the stored span must sit
// within the configured window give or take holiday slack, today's row
// must exist, and no trading-day gap wider than a long weekend may
// appear.
func (a *Auditor) AuditDaily(dates []time.Time) Report {
	r := baseReport(dates)
	if len(dates) == 0 {
		return r
	}

	spanDays := int(r.Newest.Sub(r.Oldest).Hours() / 24)
	spanOK := spanDays >= a.dailyWindowDays-dailySpanSlack && spanDays <= a.dailyWindowDays+dailySpanSlack

	today := dayStart(a.now().UTC())
	hasToday := dayStart(r.Newest).Equal(today)

	present := make(map[string]bool, len(dates))
	for _, d := range dates {
		present[dayKey(d)] = true
	}
	noGap := true
	prev := r.Oldest
	for _, d := range sortedCopy(dates)[1:] {
		// gaps beyond 4 days exceed any holiday weekend
		if d.Sub(prev) > 4*24*time.Hour {
			r.Missing = append(r.Missing, dayKey(prev.AddDate(0, 0, 1)))
			noGap = false
		}
		prev = d
	}
	r.MissingCount = len(r.Missing)

	if a.dailyWindowDays > 0 {
		r.CoverageRatio = round2(float64(len(present)) / float64(a.dailyWindowDays))
	}
	r.Complete = spanOK && hasToday && noGap
	return r
}

// AuditDividends checks calendar-year buckets since the first dividend
func (a *Auditor) AuditDividends(dates []time.Time, inception *time.Time) Report {
	r := baseReport(dates)
	if len(dates) == 0 {
		return r
	}

	present := make(map[int]bool, len(dates))
	for _, d := range dates {
		present[d.Year()] = true
	}
	for y := r.Oldest.Year(); y <= r.Newest.Year(); y++ {
		if !present[y] {
			r.Missing = append(r.Missing, fmt.Sprintf("%d", y))
		}
	}
	r.MissingCount = len(r.Missing)

	target := a.TargetStart(inception)
	expectedYears := a.now().UTC().Year() - target.Year() + 1
	if expectedYears > 0 {
		r.CoverageRatio = round2(float64(len(present)) / float64(expectedYears))
	}

	noGaps := r.MissingCount == 0 && r.Oldest.Year() <= target.Year()
	r.Complete = noGaps || (inception != nil && r.CoverageRatio >= coverageThreshold)
	return r
}

// EarliestMissing returns the oldest missing bucket as a date, used by
// the completion orchestrator to size its fetch window. ok is false
// when nothing is missing.
func EarliestMissing(r Report) (time.Time, bool) {
	if len(r.Missing) == 0 {
		return time.Time{}, false
	}
	first := r.Missing[0]
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, first); err == nil {
			return t, true
		}
	}

	var year, week int
	if n, err := fmt.Sscanf(first, "%d-W%d", &year, &week); err == nil && n == 2 {
		return weekStart(year, week), true
	}
	return time.Time{}, false
}

// weekStart returns the Monday of the given ISO week. January 4th is
// always inside week 1 of its ISO year.
func weekStart(year, week int) time.Time {
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return monday.AddDate(0, 0, (week-1)*7)
}

func baseReport(dates []time.Time) Report {
	r := Report{}
	if len(dates) == 0 {
		return r
	}
	sorted := sortedCopy(dates)
	r.Oldest = sorted[0]
	r.Newest = sorted[len(sorted)-1]
	r.SpanYears = round2(r.Newest.Sub(r.Oldest).Hours() / 24 / daysPerYear)
	return r
}

func sortedCopy(dates []time.Time) []time.Time {
	out := make([]time.Time, len(dates))
	copy(out, dates)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func monthKey(t time.Time) string { return t.Format("2006-01") }
func dayKey(t time.Time) string   { return t.Format("2006-01-02") }

func weekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
