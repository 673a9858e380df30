package predictor

import (
	"math"

	"price_forecast/internal/model"
)

// scored returns the historical points that carry a market price, in order.
func scored(points []model.PricePoint) []model.PricePoint {
	out := make([]model.PricePoint, 0, len(points))
	for _, p := range points {
		if p.IsFuture || !p.HasActual() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ComputeMetrics scores predictions against actual prices over the historical
// points of a series. R2 is 0 when the actual prices have no variance.
func ComputeMetrics(points []model.PricePoint) model.AggregateMetrics {
	return sliceMetrics(scored(points))
}

// sliceMetrics expects every point to carry an actual price.
func sliceMetrics(points []model.PricePoint) model.AggregateMetrics {
	if len(points) == 0 {
		return model.AggregateMetrics{}
	}

	actuals := make([]float64, len(points))
	for i, p := range points {
		actuals[i] = *p.ActualPrice
	}
	actualMean := Mean(actuals)

	var absErr, sqErr, totalVar float64
	for i, p := range points {
		diff := p.PredictedPrice - actuals[i]
		absErr += math.Abs(diff)
		sqErr += diff * diff
		dv := actuals[i] - actualMean
		totalVar += dv * dv
	}

	n := float64(len(points))
	m := model.AggregateMetrics{
		MAE:  absErr / n,
		RMSE: math.Sqrt(sqErr / n),
	}
	if totalVar > 0 && !constant(actuals) {
		m.R2 = 1 - sqErr/totalVar
	}
	return m
}
