package indicators

import "time"

// StochasticParams hold the lookback and smoothing windows
type StochasticParams struct {
	Lookback int
	KSmooth  int
	DPeriod  int
}

// The two served presets: Long for trend overview, Short for momentum
var (
	StochasticLong  = StochasticParams{Lookback: 36, KSmooth: 12, DPeriod: 12}
	StochasticShort = StochasticParams{Lookback: 9, KSmooth: 3, DPeriod: 3}
)

// StochasticPoint is one dated oscillator sample
type StochasticPoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
	K     *float64  `json:"k"`
	D     *float64  `json:"d"`
}

// Stochastic computes the stochastic oscillator. %K raw is the close
// positioned within the lookback high-low range; it is undefined when
// the range is flat. %K is the raw value smoothed by KSmooth, %D the
// %K smoothed again by DPeriod.
func Stochastic(points []Point, params StochasticParams) []StochasticPoint {
	n := len(points)
	raw := make([]*float64, n)

	for t := params.Lookback - 1; t < n; t++ {
		hh := points[t].Close
		ll := points[t].Close
		for i := t - params.Lookback + 1; i <= t; i++ {
			if points[i].Close > hh {
				hh = points[i].Close
			}
			if points[i].Close < ll {
				ll = points[i].Close
			}
		}
		if hh == ll {
			continue
		}
		v := (points[t].Close - ll) / (hh - ll) * 100
		raw[t] = &v
	}

	kSmoothed := sma(raw, params.KSmooth)
	d := sma(kSmoothed, params.DPeriod)

	out := make([]StochasticPoint, n)
	for i, p := range points {
		out[i] = StochasticPoint{Date: p.Date, Close: p.Close}
		if kSmoothed[i] != nil {
			out[i].K = round4p(*kSmoothed[i])
		}
		if d[i] != nil {
			out[i].D = round4p(*d[i])
		}
	}
	return out
}
