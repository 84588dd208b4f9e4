package indicators

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSeries(n int, close float64) []Point {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{Date: start.AddDate(0, 0, i), Close: close}
	}
	return points
}

func TestMACD_ConstantSeries(t *testing.T) {
	out := MACD(constantSeries(40, 100), DefaultMACDParams)
	require.Len(t, out, 40)

	// the MACD line needs the slow EMA window (17) to fill
	for i := 0; i < 16; i++ {
		assert.Nil(t, out[i].MACD, "index %d", i)
	}
	for i := 16; i < 40; i++ {
		require.NotNil(t, out[i].MACD, "index %d", i)
		assert.Equal(t, 0.0, *out[i].MACD, "index %d", i)
	}

	// the signal line needs 9 MACD values on top of that
	for i := 0; i < 24; i++ {
		assert.Nil(t, out[i].Signal, "index %d", i)
	}
	for i := 24; i < 40; i++ {
		require.NotNil(t, out[i].Signal, "index %d", i)
		assert.Equal(t, 0.0, *out[i].Signal)
		assert.Equal(t, 0.0, *out[i].Histogram)
	}
}

func TestMACD_ShortSeries(t *testing.T) {
	out := MACD(constantSeries(10, 100), DefaultMACDParams)
	for _, p := range out {
		assert.Nil(t, p.MACD)
		assert.Nil(t, p.Signal)
	}
}

func TestMACD_TrendSign(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, 40)
	for i := range points {
		points[i] = Point{Date: start.AddDate(0, 0, i), Close: 100 + float64(i)}
	}

	out := MACD(points, DefaultMACDParams)
	// in a steady uptrend the fast EMA leads the slow one
	last := out[len(out)-1]
	require.NotNil(t, last.MACD)
	assert.Positive(t, *last.MACD)
}

func TestMACD_Deterministic(t *testing.T) {
	points := constantSeries(40, 100)
	for i := range points {
		points[i].Close = 100 + float64(i%7)
	}

	a := MACD(points, DefaultMACDParams)
	b := MACD(points, DefaultMACDParams)
	assert.True(t, reflect.DeepEqual(a, b))
}

func TestEMA_SeededWithSimpleAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := ema(values, 3)

	assert.Nil(t, out[0])
	assert.Nil(t, out[1])
	require.NotNil(t, out[2])
	assert.Equal(t, 2.0, *out[2])

	// alpha = 2/(3+1) = 0.5
	assert.Equal(t, 3.0, *out[3])
	assert.Equal(t, 4.0, *out[4])
}
