package indicators

import "time"

// MACDParams hold the EMA periods
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACDParams is the configuration the analytics surface uses
var DefaultMACDParams = MACDParams{Fast: 8, Slow: 17, Signal: 9}

// MACDPoint is one dated MACD sample. Fields are nil until the
// underlying EMA windows are full.
type MACDPoint struct {
	Date      time.Time `json:"date"`
	Close     float64   `json:"close"`
	MACD      *float64  `json:"macd"`
	Signal    *float64  `json:"signal"`
	Histogram *float64  `json:"histogram"`
}

// MACD computes the moving average convergence divergence series.
// The MACD line is EMA(fast) minus EMA(slow); the signal line is an
// EMA of the MACD line itself; the histogram is their difference.
func MACD(points []Point, params MACDParams) []MACDPoint {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	fast := ema(closes, params.Fast)
	slow := ema(closes, params.Slow)

	macdLine := make([]*float64, len(points))
	for i := range points {
		if fast[i] != nil && slow[i] != nil {
			v := *fast[i] - *slow[i]
			macdLine[i] = &v
		}
	}

	signal := emaSparse(macdLine, params.Signal)

	out := make([]MACDPoint, len(points))
	for i, p := range points {
		out[i] = MACDPoint{Date: p.Date, Close: p.Close}
		if macdLine[i] != nil {
			out[i].MACD = round4p(*macdLine[i])
		}
		if signal[i] != nil {
			out[i].Signal = round4p(*signal[i])
			hist := *macdLine[i] - *signal[i]
			out[i].Histogram = round4p(hist)
		}
	}
	return out
}

// emaSparse runs ema over a series with leading nils, seeding from the
// first k present values
func emaSparse(values []*float64, k int) []*float64 {
	out := make([]*float64, len(values))

	start := -1
	for i, v := range values {
		if v != nil {
			start = i
			break
		}
	}
	if start < 0 || len(values)-start < k {
		return out
	}

	dense := make([]float64, 0, len(values)-start)
	for _, v := range values[start:] {
		dense = append(dense, *v)
	}
	for i, v := range ema(dense, k) {
		out[start+i] = v
	}
	return out
}
