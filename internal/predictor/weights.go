package predictor

import "price_forecast/internal/model"

// Weights are the blend coefficients of one model.
type Weights struct {
	Lag1  float64 `json:"lag1"`
	Lag24 float64 `json:"lag24"`
	Hour  float64 `json:"hour"`
	Mean  float64 `json:"mean"`
	Temp  float64 `json:"temp"`
}

var weightTable = map[model.ModelType]Weights{
	model.ModelLinearRegression: {Lag1: 0.45, Lag24: 0.00, Hour: 0.35, Mean: 0.20, Temp: 0.9},
	model.ModelRandomForest:     {Lag1: 0.54, Lag24: 0.06, Hour: 0.30, Mean: 0.10, Temp: 1.05},
	model.ModelGradientBoosting: {Lag1: 0.60, Lag24: 0.05, Hour: 0.28, Mean: 0.07, Temp: 1.15},
}

// WeightsFor returns the weights of m; unknown models use the default model's weights.
func WeightsFor(m model.ModelType) Weights {
	if w, ok := weightTable[m]; ok {
		return w
	}
	return weightTable[model.DefaultModel]
}
