package indicators

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampSeries(n int) []Point {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{Date: start.AddDate(0, 0, i), Close: float64(i + 1)}
	}
	return points
}

func TestStochastic_MonotonicRamp(t *testing.T) {
	out := Stochastic(rampSeries(20), StochasticShort)
	require.Len(t, out, 20)

	// %K needs lookback 9 plus smoothing 3; on a ramp every raw %K is 100
	for i := 0; i < 10; i++ {
		assert.Nil(t, out[i].K, "index %d", i)
	}
	for i := 10; i < 20; i++ {
		require.NotNil(t, out[i].K, "index %d", i)
		assert.Equal(t, 100.0, *out[i].K, "index %d", i)
	}

	// %D smooths %K by another 3
	for i := 0; i < 12; i++ {
		assert.Nil(t, out[i].D, "index %d", i)
	}
	for i := 12; i < 20; i++ {
		require.NotNil(t, out[i].D, "index %d", i)
		assert.Equal(t, 100.0, *out[i].D, "index %d", i)
	}
}

func TestStochastic_FlatRangeUndefined(t *testing.T) {
	out := Stochastic(constantSeries(20, 50), StochasticShort)
	for _, p := range out {
		assert.Nil(t, p.K)
		assert.Nil(t, p.D)
	}
}

func TestStochastic_BoundsAndRounding(t *testing.T) {
	points := rampSeries(60)
	for i := range points {
		points[i].Close = float64((i*13)%17) + 0.123456
	}

	out := Stochastic(points, StochasticLong)
	for _, p := range out {
		if p.K != nil {
			assert.GreaterOrEqual(t, *p.K, 0.0)
			assert.LessOrEqual(t, *p.K, 100.0)
			assert.Equal(t, *p.K, float64(int(*p.K*10000+0.5))/10000)
		}
	}
}

func TestStochastic_Deterministic(t *testing.T) {
	points := rampSeries(60)
	for i := range points {
		points[i].Close = float64((i*7)%23) + 1
	}

	a := Stochastic(points, StochasticLong)
	b := Stochastic(points, StochasticLong)
	assert.True(t, reflect.DeepEqual(a, b))
}
