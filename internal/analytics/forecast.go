package analytics

import (
	"time"

	"github.com/mzurek/divtrack/internal/frequency"
)

// Forecast is the year-over-year dividend growth projection
type Forecast struct {
	LastNSum      float64 `json:"last_n_sum"`
	BaselineYear  int     `json:"baseline_year"`
	BaselineSum   float64 `json:"baseline_sum"`
	GrowthPercent float64 `json:"growth_percent"`
}

// GrowthForecast compares the trailing year of income against the last
// completed calendar year. When the prior year paid nothing the
// baseline falls back to the current year, which yields a 0% forecast;
// that quirk is kept for continuity with historical reports.
func GrowthForecast(payments []Payment, freq frequency.Frequency, now time.Time) Forecast {
	out := Forecast{LastNSum: LastNSum(payments, freq)}
	if len(payments) == 0 {
		return out
	}

	sums := make(map[int]float64)
	for _, p := range payments {
		sums[p.Date.Year()] += p.Amount
	}

	baseline := now.Year() - 1
	if sums[baseline] == 0 {
		baseline = now.Year()
	}
	out.BaselineYear = baseline
	out.BaselineSum = round4(sums[baseline])
	if out.BaselineSum == 0 {
		return out
	}

	out.GrowthPercent = round4((out.LastNSum - out.BaselineSum) / out.BaselineSum * 100)
	return out
}
