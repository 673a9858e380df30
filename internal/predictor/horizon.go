package predictor

// horizonDemandFactor is the EUR/MWh added per degree of heating demand.
const horizonDemandFactor = 0.35

// PredictHorizon extrapolates the next-hour price from the current price and temperature.
func PredictHorizon(currentPrice, currentTemp float64) float64 {
	return Round2(currentPrice + horizonDemandFactor*HeatingDemand(currentTemp))
}
