// Package indicators computes technical indicators over ordered
// (date, close) sequences. Outputs are deterministic and aligned with
// the input dates; entries where the window is not yet full are nil.
package indicators

import (
	"math"
	"time"
)

// Point is one dated close feeding an indicator
type Point struct {
	Date  time.Time
	Close float64
}

// round4 rounds indicator fields to four decimals
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round4p(v float64) *float64 {
	r := round4(v)
	return &r
}

// ema computes the exponential moving average over values with period
// k. The first k-1 entries are nil; entry k-1 is seeded with the
// simple average of the first k values.
func ema(values []float64, k int) []*float64 {
	out := make([]*float64, len(values))
	if k <= 0 || len(values) < k {
		return out
	}

	var sum float64
	for _, v := range values[:k] {
		sum += v
	}
	prev := sum / float64(k)
	seed := prev
	out[k-1] = &seed

	alpha := 2.0 / float64(k+1)
	for i := k; i < len(values); i++ {
		next := prev + alpha*(values[i]-prev)
		out[i] = &next
		prev = next
	}
	return out
}

// sma computes the simple moving average over a possibly sparse
// series. An output entry is set only when all p inputs in its window
// are present.
func sma(values []*float64, p int) []*float64 {
	out := make([]*float64, len(values))
	if p <= 0 {
		return out
	}
	for i := p - 1; i < len(values); i++ {
		var sum float64
		full := true
		for j := i - p + 1; j <= i; j++ {
			if values[j] == nil {
				full = false
				break
			}
			sum += *values[j]
		}
		if full {
			avg := sum / float64(p)
			out[i] = &avg
		}
	}
	return out
}
