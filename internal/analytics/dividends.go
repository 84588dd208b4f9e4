// Package analytics derives dividend growth, income, forecast and
// break-even figures from normalized stored series.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mzurek/divtrack/internal/frequency"
)

// Payment is one normalized dividend feeding the analytics
type Payment struct {
	Date   time.Time
	Amount float64
}

// round4 matches the precision of the indicator outputs
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// YearlyAverages groups payments by calendar year and averages the
// per-payment amounts within each year. The returned years are sorted
// ascending.
func YearlyAverages(payments []Payment) (years []int, averages map[int]float64) {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, p := range payments {
		y := p.Date.Year()
		sums[y] += p.Amount
		counts[y]++
	}

	averages = make(map[int]float64, len(sums))
	for y, sum := range sums {
		years = append(years, y)
		averages[y] = sum / float64(counts[y])
	}
	sort.Ints(years)
	return years, averages
}

// LastNSum sums the most recent N payments, where N covers one year of
// income at the instrument's cadence.
func LastNSum(payments []Payment, freq frequency.Frequency) float64 {
	n := freq.PaymentsPerYear()
	if n > len(payments) {
		n = len(payments)
	}

	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var sum float64
	for _, p := range sorted[len(sorted)-n:] {
		sum += p.Amount
	}
	return round4(sum)
}
