package splits

import (
	"time"

	"github.com/mzurek/divtrack/internal/market"
)

// CumulativeFactor returns the product of ratios of all splits dated
// strictly after the target date. An empty split set yields 1.0.
func CumulativeFactor(splits []market.SplitRow, date time.Time) float64 {
	factor := 1.0
	for _, s := range splits {
		if s.Date.After(date) {
			factor *= s.Ratio
		}
	}
	return factor
}

// Normalize computes the stored pair for one raw value:
// normalized = raw / factor, factor = CumulativeFactor(splits, date).
func Normalize(raw float64, splits []market.SplitRow, date time.Time) (normalized, factor float64) {
	factor = CumulativeFactor(splits, date)
	return raw / factor, factor
}
