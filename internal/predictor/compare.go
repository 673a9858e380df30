package predictor

import "price_forecast/internal/model"

// Score generates the series for one model and evaluates it.
func Score(weather []model.WeatherPoint, prices []model.SpotPricePoint, m model.ModelType) model.ModelReport {
	points := GeneratePrices(weather, prices, m)
	return model.ModelReport{
		Model:   m,
		Points:  points,
		Metrics: ComputeMetrics(points),
		Folds:   CrossValidate(points),
	}
}

// CompareModels scores every known model on the same inputs.
func CompareModels(weather []model.WeatherPoint, prices []model.SpotPricePoint) []model.ModelReport {
	models := model.AllModels()
	reports := make([]model.ModelReport, len(models))
	for i, m := range models {
		reports[i] = Score(weather, prices, m)
	}
	return reports
}
