package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzurek/divtrack/internal/frequency"
)

func pay(y int, m time.Month, d int, amount float64) Payment {
	return Payment{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Amount: amount}
}

// quarterlyYear emits four equal payments averaging avg for the year
func quarterlyYear(year int, avg float64) []Payment {
	var out []Payment
	for _, m := range []time.Month{3, 6, 9, 12} {
		out = append(out, pay(year, m, 15, avg))
	}
	return out
}

func TestGrowthStreak(t *testing.T) {
	var payments []Payment
	for year, avg := range map[int]float64{
		2020: 1.60, 2021: 1.65, 2022: 1.68, 2023: 1.76, 2024: 1.72,
	} {
		payments = append(payments, quarterlyYear(year, avg)...)
	}

	dsg := GrowthStreak(payments)
	assert.Equal(t, 3, dsg.Streak)
	assert.Equal(t, 2021, dsg.StreakStartYear)
	assert.Equal(t, 5, dsg.TotalYears)
	assert.Equal(t, "decrease", dsg.LastChange)
}

func TestGrowthStreak_AllIncreasing(t *testing.T) {
	var payments []Payment
	for i, avg := range []float64{1.0, 1.1, 1.2, 1.3} {
		payments = append(payments, quarterlyYear(2021+i, avg)...)
	}

	dsg := GrowthStreak(payments)
	assert.Equal(t, 3, dsg.Streak)
	assert.Equal(t, 2022, dsg.StreakStartYear)
	assert.Equal(t, "increase", dsg.LastChange)
}

func TestGrowthStreak_TooFewYears(t *testing.T) {
	dsg := GrowthStreak(quarterlyYear(2024, 1.5))
	assert.Equal(t, 0, dsg.Streak)
	assert.Equal(t, "none", dsg.LastChange)
}

func TestYearlyAverages(t *testing.T) {
	payments := append(quarterlyYear(2023, 1.5), pay(2024, 3, 15, 2.0), pay(2024, 6, 15, 1.0))

	years, averages := YearlyAverages(payments)
	require.Equal(t, []int{2023, 2024}, years)
	assert.InDelta(t, 1.5, averages[2023], 1e-9)
	assert.InDelta(t, 1.5, averages[2024], 1e-9)
}

func TestLastNSum(t *testing.T) {
	var payments []Payment
	start := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		payments = append(payments, Payment{Date: start.AddDate(0, i, 0), Amount: 0.25})
	}

	assert.InDelta(t, 3.0, LastNSum(payments, frequency.Monthly), 1e-9)
	assert.InDelta(t, 1.0, LastNSum(payments, frequency.Quarterly), 1e-9)
	assert.InDelta(t, 0.25, LastNSum(payments, frequency.Annual), 1e-9)
}

func TestLastNSum_FewerPaymentsThanN(t *testing.T) {
	payments := []Payment{pay(2024, 1, 15, 0.5), pay(2024, 2, 15, 0.5)}
	assert.InDelta(t, 1.0, LastNSum(payments, frequency.Monthly), 1e-9)
}

func TestGrowthForecast(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	var payments []Payment
	payments = append(payments, quarterlyYear(2024, 0.50)...) // 2.00 for the year
	payments = append(payments, pay(2025, 3, 15, 0.55), pay(2025, 6, 1, 0.55))

	f := GrowthForecast(payments, frequency.Quarterly, now)
	// last 4 payments: 0.50 + 0.50 + 0.55 + 0.55 = 2.10 vs 2.00
	assert.Equal(t, 2024, f.BaselineYear)
	assert.InDelta(t, 2.00, f.BaselineSum, 1e-9)
	assert.InDelta(t, 2.10, f.LastNSum, 1e-9)
	assert.InDelta(t, 5.0, f.GrowthPercent, 1e-9)
}

func TestGrowthForecast_NoPriorYearFallsBack(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	payments := []Payment{pay(2025, 3, 15, 0.5), pay(2025, 6, 1, 0.5)}

	f := GrowthForecast(payments, frequency.Quarterly, now)
	assert.Equal(t, 2025, f.BaselineYear)
	assert.InDelta(t, 0.0, f.GrowthPercent, 1e-9)
}

func TestGrowthForecast_Empty(t *testing.T) {
	f := GrowthForecast(nil, frequency.Quarterly, time.Now())
	assert.Zero(t, f.GrowthPercent)
	assert.Zero(t, f.LastNSum)
}

func TestBreakEven(t *testing.T) {
	prices := []PricePoint{
		{Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Close: 100},
	}
	var payments []Payment
	start := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		payments = append(payments, Payment{Date: start.AddDate(0, i, 0), Amount: 1.0})
	}

	// target 10% of 100 = 10 dollars; at 1/month that takes 10 payments
	out := BreakEven(prices, payments, 10)
	require.Len(t, out, 2)

	require.NotNil(t, out[0].Months)
	assert.Equal(t, 9.4, *out[0].Months)
	assert.Equal(t, 10.0, out[0].Target)

	// the later purchase has only 7 payments left, never breaks even
	assert.Nil(t, out[1].Months)
}

func TestAfterTax(t *testing.T) {
	assert.InDelta(t, 0.85, AfterTax(1.0, 15), 1e-9)
	assert.InDelta(t, 1.0, AfterTax(1.0, 0), 1e-9)
	assert.InDelta(t, 0.0, AfterTax(1.0, 100), 1e-9)
}
