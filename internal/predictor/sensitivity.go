package predictor

import "time"

// ComfortTemp is the outdoor temperature (°C) below which heating demand starts.
const ComfortTemp = 15.0

const (
	minTempBeta = -2.5
	maxTempBeta = 6.0
)

// HistoricalPair joins an observed temperature with the market price of the same hour.
type HistoricalPair struct {
	Timestamp   time.Time
	Temperature float64
	Price       float64
}

// HeatingDemand is the degree-hours below ComfortTemp.
func HeatingDemand(temp float64) float64 {
	return max(0, ComfortTemp-temp)
}

// TemperatureSensitivity estimates EUR/MWh per unit of heating demand.
func TemperatureSensitivity(pairs []HistoricalPair) float64 {
	demand := make([]float64, len(pairs))
	prices := make([]float64, len(pairs))
	for i, p := range pairs {
		demand[i] = HeatingDemand(p.Temperature)
		prices[i] = p.Price
	}
	return Clamp(CovarianceSlope(demand, prices), minTempBeta, maxTempBeta)
}
