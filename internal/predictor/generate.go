package predictor

import (
	"sort"
	"time"

	"price_forecast/internal/model"
)

const (
	// defaultGlobalMean (EUR/MWh) seeds the model when no price history is available.
	defaultGlobalMean = 30.0

	minPredictedPrice = -20.0
	maxPredictedPrice = 450.0
)

// Features are the inputs the blend used for one sample.
type Features struct {
	Lag1           float64 `json:"lag1"`
	Lag24          float64 `json:"lag24"`
	HourMean       float64 `json:"hour_mean"`
	GlobalMean     float64 `json:"global_mean"`
	CenteredDemand float64 `json:"centered_demand"`
	TempBeta       float64 `json:"temp_beta"`
	Raw            float64 `json:"raw"`
}

// ExplainedPoint pairs a generated point with its features.
type ExplainedPoint struct {
	model.PricePoint
	Features Features `json:"features"`
}

// Calibration holds the statistics derived from the historical part of a timeline.
type Calibration struct {
	GlobalMean float64
	Profile    HourlyProfile
	AvgDemand  float64
	TempBeta   float64
	Pairs      int
}

// lagState carries the realized price history through one generation pass.
type lagState struct {
	history   map[string]float64
	prevPrice float64
}

func newLagState(seed float64) *lagState {
	return &lagState{
		history:   make(map[string]float64),
		prevPrice: seed,
	}
}

func (s *lagState) lag1(t time.Time) float64 {
	if v, ok := s.history[HourKey(HourOf(t).Add(-time.Hour))]; ok {
		return v
	}
	return s.prevPrice
}

func (s *lagState) lag24(t time.Time, fallback float64) float64 {
	if v, ok := s.history[HourKey(HourOf(t).Add(-24*time.Hour))]; ok {
		return v
	}
	return fallback
}

func (s *lagState) record(t time.Time, realized float64) {
	s.history[HourKey(t)] = realized
	s.prevPrice = realized
}

// GeneratePrices merges a weather timeline with market prices and scores every
// weather sample with the given model. The result has one record per weather
// sample in chronological order.
func GeneratePrices(weather []model.WeatherPoint, prices []model.SpotPricePoint, m model.ModelType) []model.PricePoint {
	explained := GenerateWithFeatures(weather, prices, m)
	points := make([]model.PricePoint, len(explained))
	for i, e := range explained {
		points[i] = e.PricePoint
	}
	return points
}

// GenerateWithFeatures is GeneratePrices with the per-sample blend inputs attached.
func GenerateWithFeatures(weather []model.WeatherPoint, prices []model.SpotPricePoint, m model.ModelType) []ExplainedPoint {
	sorted := sortWeather(weather)
	lookup := priceLookup(prices)
	cal := Calibrate(sorted, lookup)
	w := WeightsFor(m)

	state := newLagState(cal.GlobalMean)
	out := make([]ExplainedPoint, 0, len(sorted))

	for _, wp := range sorted {
		f := Features{
			Lag1:           state.lag1(wp.Time),
			Lag24:          state.lag24(wp.Time, cal.GlobalMean),
			HourMean:       cal.Profile.At(wp.Time.UTC().Hour(), cal.GlobalMean),
			GlobalMean:     cal.GlobalMean,
			CenteredDemand: HeatingDemand(wp.Temperature) - cal.AvgDemand,
			TempBeta:       cal.TempBeta,
		}
		f.Raw = f.Lag1*w.Lag1 +
			f.Lag24*w.Lag24 +
			f.HourMean*w.Hour +
			f.GlobalMean*w.Mean +
			f.TempBeta*w.Temp*f.CenteredDemand

		p := model.PricePoint{
			Timestamp:      wp.Time,
			PredictedPrice: Round2(Clamp(f.Raw, minPredictedPrice, maxPredictedPrice)),
			Temperature:    wp.Temperature,
			IsFuture:       wp.IsForecast,
		}

		realized := p.PredictedPrice
		if !wp.IsForecast {
			if price, ok := lookup[HourKey(wp.Time)]; ok {
				actual := Round2(price)
				p.ActualPrice = &actual
				realized = actual
			}
		}
		state.record(wp.Time, realized)

		out = append(out, ExplainedPoint{PricePoint: p, Features: f})
	}
	return out
}

// Calibrate derives the blend statistics from observed weather samples that
// have a market price for their hour.
func Calibrate(sorted []model.WeatherPoint, lookup map[string]float64) Calibration {
	pairs := historicalPairs(sorted, lookup)

	cal := Calibration{
		GlobalMean: defaultGlobalMean,
		Pairs:      len(pairs),
	}
	if len(pairs) == 0 {
		return cal
	}

	priceVals := make([]float64, len(pairs))
	demand := make([]float64, len(pairs))
	for i, p := range pairs {
		priceVals[i] = p.Price
		demand[i] = HeatingDemand(p.Temperature)
	}
	cal.GlobalMean = Mean(priceVals)
	cal.Profile = BuildHourlyProfile(pairs)
	cal.AvgDemand = Mean(demand)
	cal.TempBeta = TemperatureSensitivity(pairs)
	return cal
}

func historicalPairs(sorted []model.WeatherPoint, lookup map[string]float64) []HistoricalPair {
	var pairs []HistoricalPair
	for _, wp := range sorted {
		if wp.IsForecast {
			continue
		}
		price, ok := lookup[HourKey(wp.Time)]
		if !ok {
			continue
		}
		pairs = append(pairs, HistoricalPair{
			Timestamp:   wp.Time,
			Temperature: wp.Temperature,
			Price:       price,
		})
	}
	return pairs
}

// priceLookup indexes prices by hour bucket. A later entry for the same hour
// replaces an earlier one. Zero timestamps and non-finite prices are ignored.
func priceLookup(prices []model.SpotPricePoint) map[string]float64 {
	lookup := make(map[string]float64, len(prices))
	for _, p := range prices {
		key := HourKey(p.Timestamp)
		if key == "" || !isFinite(p.Price) {
			continue
		}
		lookup[key] = p.Price
	}
	return lookup
}

// sortWeather returns a time-ordered copy; the input is left untouched.
func sortWeather(weather []model.WeatherPoint) []model.WeatherPoint {
	sorted := make([]model.WeatherPoint, len(weather))
	copy(sorted, weather)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}
