package ingest

import (
	"math"
	"math/rand/v2"
	"time"

	"price_forecast/internal/model"
)

const (
	syntheticPastHours     = 24
	syntheticForecastHours = 12

	// Helsinki climatology in °C.
	helsinkiAnnualMean  = 5.5
	helsinkiSeasonalAmp = 11.0
	helsinkiDiurnalAmp  = 3.0
	syntheticNoiseStd   = 0.6
	syntheticNoiseAlpha = 0.9
	coldestDayOfYear    = 20
	warmestHourUTC      = 12
)

// TempRateConstraint defines a maximum allowed temperature change over a time window.
type TempRateConstraint struct {
	WindowHours int
	MaxDeltaC   float64
}

// DefaultTempRateConstraints are physical limits on how fast outdoor temperature changes.
var DefaultTempRateConstraints = []TempRateConstraint{
	{1, 5.0},
	{4, 10.0},
	{10, 15.0},
	{14, 20.0},
}

// SyntheticWeather builds a plausible Helsinki timeline for the 24 hours up to
// now (observed) and the 12 hours after it (forecast). It stands in for the
// weather feed when that is unavailable. The same now and seed give the same
// timeline.
func SyntheticWeather(now time.Time, seed uint64) []model.WeatherPoint {
	rng := rand.New(rand.NewPCG(seed, 0))
	current := now.UTC().Truncate(time.Hour)
	start := current.Add(-(syntheticPastHours - 1) * time.Hour)
	n := syntheticPastHours + syntheticForecastHours

	temps := make([]float64, n)
	scale := math.Sqrt(1 - syntheticNoiseAlpha*syntheticNoiseAlpha)
	var noise float64
	for i := range temps {
		t := start.Add(time.Duration(i) * time.Hour)
		noise = syntheticNoiseAlpha*noise + scale*rng.NormFloat64()*syntheticNoiseStd
		temps[i] = climatology(t) + noise
	}
	EnforceTempRateConstraints(temps, DefaultTempRateConstraints)

	points := make([]model.WeatherPoint, n)
	for i, temp := range temps {
		t := start.Add(time.Duration(i) * time.Hour)
		points[i] = model.WeatherPoint{
			Time:        t,
			Temperature: math.Round(temp*10) / 10,
			IsForecast:  t.After(current),
		}
	}
	return points
}

// climatology is the expected temperature for t without weather noise.
func climatology(t time.Time) float64 {
	dAngle := 2 * math.Pi * float64(t.YearDay()-coldestDayOfYear) / 365.0
	hAngle := 2 * math.Pi * float64(t.Hour()-warmestHourUTC) / 24.0
	return helsinkiAnnualMean - helsinkiSeasonalAmp*math.Cos(dAngle) + helsinkiDiurnalAmp*math.Cos(hAngle)
}

// EnforceTempRateConstraints clamps a temperature sequence so that all
// rate-of-change constraints are satisfied simultaneously, using forward
// (lookback) and backward (lookahead) passes until nothing changes.
func EnforceTempRateConstraints(temps []float64, constraints []TempRateConstraint) {
	for pass := 0; pass < 50; pass++ {
		changed := false

		for i := 1; i < len(temps); i++ {
			if clampToConstraints(temps, i, constraints, true) {
				changed = true
			}
		}
		for i := len(temps) - 2; i >= 0; i-- {
			if clampToConstraints(temps, i, constraints, false) {
				changed = true
			}
		}

		if !changed {
			break
		}
	}
}

func clampToConstraints(temps []float64, i int, constraints []TempRateConstraint, forward bool) bool {
	lo := math.Inf(-1)
	hi := math.Inf(1)

	for _, c := range constraints {
		j := i + c.WindowHours
		if forward {
			j = i - c.WindowHours
		}
		if j < 0 || j >= len(temps) {
			continue
		}
		lo = max(lo, temps[j]-c.MaxDeltaC)
		hi = min(hi, temps[j]+c.MaxDeltaC)
	}

	if lo > hi {
		mid := (lo + hi) / 2
		lo, hi = mid, mid
	}

	if temps[i] < lo {
		temps[i] = lo
		return true
	}
	if temps[i] > hi {
		temps[i] = hi
		return true
	}
	return false
}
