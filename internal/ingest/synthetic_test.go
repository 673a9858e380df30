package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticWeather_Shape(t *testing.T) {
	now := time.Date(2024, 11, 21, 12, 34, 0, 0, time.UTC)
	points := SyntheticWeather(now, 42)

	require.Len(t, points, 36)
	assert.Equal(t, time.Date(2024, 11, 20, 13, 0, 0, 0, time.UTC), points[0].Time)
	assert.Equal(t, time.Date(2024, 11, 21, 12, 0, 0, 0, time.UTC), points[23].Time)

	for i, p := range points {
		assert.Equal(t, i >= 24, p.IsForecast, "hour %d", i)
		assert.False(t, math.IsNaN(p.Temperature))
		if i > 0 {
			assert.Equal(t, time.Hour, p.Time.Sub(points[i-1].Time))
			assert.LessOrEqual(t, math.Abs(p.Temperature-points[i-1].Temperature), 5.0+0.1)
		}
	}
}

func TestSyntheticWeather_Deterministic(t *testing.T) {
	now := time.Date(2024, 1, 20, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, SyntheticWeather(now, 7), SyntheticWeather(now, 7))
	assert.NotEqual(t, SyntheticWeather(now, 7), SyntheticWeather(now, 8))
}

func TestSyntheticWeather_Seasonal(t *testing.T) {
	winter := SyntheticWeather(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC), 1)
	summer := SyntheticWeather(time.Date(2024, 7, 20, 12, 0, 0, 0, time.UTC), 1)

	var wSum, sSum float64
	for i := range winter {
		wSum += winter[i].Temperature
		sSum += summer[i].Temperature
	}
	assert.Less(t, wSum/float64(len(winter)), 0.0)
	assert.Greater(t, sSum/float64(len(summer)), 10.0)
}

func TestEnforceTempRateConstraints(t *testing.T) {
	temps := []float64{0, 20, 0, 0}
	EnforceTempRateConstraints(temps, DefaultTempRateConstraints)

	for i := 1; i < len(temps); i++ {
		assert.LessOrEqual(t, math.Abs(temps[i]-temps[i-1]), 5.0+1e-9)
	}
}

func TestEnforceTempRateConstraints_NoChangeWhenValid(t *testing.T) {
	temps := []float64{1, 2, 3, 2, 1}
	expected := append([]float64(nil), temps...)
	EnforceTempRateConstraints(temps, DefaultTempRateConstraints)
	assert.Equal(t, expected, temps)
}
