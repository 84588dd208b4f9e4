package splits

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mzurek/divtrack/internal/market"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCumulativeFactor(t *testing.T) {
	splits := []market.SplitRow{
		{Date: date(2024, 10, 11), Ratio: 3.0},
	}

	// rows before the split carry the full factor
	assert.Equal(t, 3.0, CumulativeFactor(splits, date(2023, 9, 1)))
	assert.Equal(t, 3.0, CumulativeFactor(splits, date(2024, 9, 1)))

	// the split day itself and later rows are already post-split
	assert.Equal(t, 1.0, CumulativeFactor(splits, date(2024, 10, 11)))
	assert.Equal(t, 1.0, CumulativeFactor(splits, date(2024, 12, 12)))
}

func TestCumulativeFactor_MultipleSplits(t *testing.T) {
	splits := []market.SplitRow{
		{Date: date(2020, 6, 1), Ratio: 2.0},
		{Date: date(2024, 10, 11), Ratio: 3.0},
	}

	assert.Equal(t, 6.0, CumulativeFactor(splits, date(2019, 1, 1)))
	assert.Equal(t, 3.0, CumulativeFactor(splits, date(2021, 1, 1)))
	assert.Equal(t, 1.0, CumulativeFactor(splits, date(2025, 1, 1)))
}

func TestNormalize_SplitRenormalization(t *testing.T) {
	splits := []market.SplitRow{
		{Date: date(2024, 10, 11), Ratio: 3.0},
	}

	cases := []struct {
		name       string
		rowDate    time.Time
		raw        float64
		wantNorm   float64
		wantFactor float64
	}{
		{"pre-split price", date(2023, 9, 1), 72.0, 24.0, 3.0},
		{"pre-split price same year", date(2024, 9, 1), 82.0, 82.0 / 3, 3.0},
		{"pre-split dividend", date(2023, 9, 20), 0.66, 0.22, 3.0},
		{"post-split dividend", date(2024, 12, 12), 0.27, 0.27, 1.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized, factor := Normalize(tc.raw, splits, tc.rowDate)
			assert.InDelta(t, tc.wantNorm, normalized, 1e-12)
			assert.Equal(t, tc.wantFactor, factor)

			// raw must always be recoverable from normalized and factor
			assert.LessOrEqual(t, math.Abs(tc.raw-normalized*factor), 1e-9*math.Max(math.Abs(tc.raw), 1))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	splits := []market.SplitRow{{Date: date(2024, 10, 11), Ratio: 3.0}}

	n1, f1 := Normalize(72.0, splits, date(2023, 9, 1))
	n2, f2 := Normalize(72.0, splits, date(2023, 9, 1))
	assert.Equal(t, n1, n2)
	assert.Equal(t, f1, f2)
}

func TestNormalize_NoSplits(t *testing.T) {
	normalized, factor := Normalize(50.0, nil, date(2024, 1, 1))
	assert.Equal(t, 50.0, normalized)
	assert.Equal(t, 1.0, factor)
}

func TestSeed(t *testing.T) {
	seeded := Seed("SCHD")
	assert.Len(t, seeded, 1)
	assert.Equal(t, date(2024, 10, 11), seeded[0].Date)
	assert.Equal(t, 3.0, seeded[0].Ratio)

	assert.Empty(t, Seed("VOO"))
}
