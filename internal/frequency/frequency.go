// Package frequency classifies dividend payment cadence from payment
// date history.
package frequency

import (
	"sort"
	"time"
)

// Frequency is a dividend payment cadence
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
	Unknown   Frequency = "unknown"
)

// sampleSize caps how many recent payments feed the classifier. Older
// payments are ignored so a cadence change converges within a year.
const sampleSize = 12

// Infer classifies cadence from payment dates. Fewer than two dates,
// or a mean gap that fits no bucket, yields Unknown.
func Infer(paymentDates []time.Time) Frequency {
	if len(paymentDates) < 2 {
		return Unknown
	}

	dates := make([]time.Time, len(paymentDates))
	copy(dates, paymentDates)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if len(dates) > sampleSize {
		dates = dates[len(dates)-sampleSize:]
	}

	var totalDays float64
	for i := 1; i < len(dates); i++ {
		totalDays += dates[i].Sub(dates[i-1]).Hours() / 24
	}
	meanGap := totalDays / float64(len(dates)-1)

	switch {
	case meanGap <= 0:
		return Unknown
	case meanGap <= 35:
		return Monthly
	case meanGap <= 100:
		return Quarterly
	case meanGap <= 400:
		return Annual
	default:
		return Unknown
	}
}

// PaymentsPerYear returns how many recent payments cover one year of
// income for the cadence. Unknown cadences fall back to quarterly.
func (f Frequency) PaymentsPerYear() int {
	switch f {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case Annual:
		return 1
	default:
		return 4
	}
}
