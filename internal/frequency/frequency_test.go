package frequency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func series(start time.Time, gapDays, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i*gapDays)
	}
	return dates
}

func TestInfer(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		dates []time.Time
		want  Frequency
	}{
		{"monthly 30-day gaps", series(start, 30, 12), Monthly},
		{"quarterly 90-day gaps", series(start, 90, 8), Quarterly},
		{"annual 365-day gaps", series(start, 365, 5), Annual},
		{"semi-annual lands in the annual bucket", series(start, 182, 6), Annual},
		{"multi-year gaps are unknown", series(start, 500, 4), Unknown},
		{"single payment", series(start, 30, 1), Unknown},
		{"no payments", nil, Unknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Infer(tc.dates))
		})
	}
}

func TestInfer_UnsortedInput(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	dates := series(start, 30, 6)
	dates[0], dates[5] = dates[5], dates[0]

	assert.Equal(t, Monthly, Infer(dates))
}

func TestInfer_CadenceChangeConverges(t *testing.T) {
	// years of quarterly payments followed by a year of monthly ones:
	// only the recent sample feeds the mean, so the new cadence wins
	start := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	dates := series(start, 90, 16)
	last := dates[len(dates)-1]
	for i := 1; i <= 12; i++ {
		dates = append(dates, last.AddDate(0, 0, i*30))
	}

	assert.Equal(t, Monthly, Infer(dates))
}

func TestPaymentsPerYear(t *testing.T) {
	assert.Equal(t, 12, Monthly.PaymentsPerYear())
	assert.Equal(t, 4, Quarterly.PaymentsPerYear())
	assert.Equal(t, 1, Annual.PaymentsPerYear())
	assert.Equal(t, 4, Unknown.PaymentsPerYear())
}
