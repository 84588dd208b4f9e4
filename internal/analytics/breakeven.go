package analytics

import (
	"math"
	"sort"
	"time"
)

// PricePoint is one dated normalized close
type PricePoint struct {
	Date  time.Time
	Close float64
}

// BreakEvenPoint reports, for a purchase at one historical price, how
// long the cumulative dividends per share took to reach the target
// fraction of that price. Months is nil when the target was never
// reached within the stored history.
type BreakEvenPoint struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Target float64   `json:"target_amount"`
	Months *float64  `json:"months,omitempty"`
}

// BreakEven computes the per-month series of break-even spans for a
// target yield given in percent. Prices and payments are normalized
// series; payments before the purchase date do not count.
func BreakEven(prices []PricePoint, payments []Payment, targetPercent float64) []BreakEvenPoint {
	out := make([]BreakEvenPoint, 0, len(prices))
	ordered := sortedByDate(payments)

	for _, p := range prices {
		target := targetPercent / 100 * p.Close
		point := BreakEvenPoint{Date: p.Date, Price: p.Close, Target: round4(target)}

		var cum float64
		for _, d := range ordered {
			if d.Date.Before(p.Date) {
				continue
			}
			cum += d.Amount
			if cum >= target {
				months := monthsSpan(p.Date, d.Date)
				point.Months = &months
				break
			}
		}
		out = append(out, point)
	}
	return out
}

func sortedByDate(payments []Payment) []Payment {
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	return sorted
}

// monthsSpan measures the span in fractional months rounded to one
// decimal
func monthsSpan(from, to time.Time) float64 {
	days := to.Sub(from).Hours() / 24
	return math.Round(days/30.44*10) / 10
}
