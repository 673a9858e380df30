package model

import "time"

// ModelType names one of the fixed linear-weight price models.
type ModelType string

const (
	ModelLinearRegression ModelType = "Linear Regression"
	ModelRandomForest     ModelType = "Random Forest"
	ModelGradientBoosting ModelType = "Gradient Boosting"
)

// DefaultModel is used whenever a model name is not recognized.
const DefaultModel = ModelGradientBoosting

// AllModels returns the known models in display order.
func AllModels() []ModelType {
	return []ModelType{ModelLinearRegression, ModelRandomForest, ModelGradientBoosting}
}

// ParseModelType maps a display name to a ModelType, falling back to DefaultModel.
func ParseModelType(s string) ModelType {
	for _, m := range AllModels() {
		if string(m) == s {
			return m
		}
	}
	return DefaultModel
}

// Known reports whether s names one of the models exactly.
func Known(s string) bool {
	for _, m := range AllModels() {
		if string(m) == s {
			return true
		}
	}
	return false
}

// WeatherPoint is a single observed or forecast outdoor temperature sample.
type WeatherPoint struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	IsForecast  bool      `json:"is_forecast"`
}

// SpotPricePoint is a day-ahead market price in EUR/MWh.
type SpotPricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	IsFuture  bool      `json:"is_future"`
}

// PricePoint is one generated record. ActualPrice is nil when no market
// price is known for a historical hour, and always nil for forecast hours.
type PricePoint struct {
	Timestamp      time.Time `json:"timestamp"`
	ActualPrice    *float64  `json:"actual_price,omitempty"`
	PredictedPrice float64   `json:"predicted_price"`
	Temperature    float64   `json:"temperature"`
	IsFuture       bool      `json:"is_future"`
}

// HasActual reports whether the point carries a market price.
func (p PricePoint) HasActual() bool {
	return p.ActualPrice != nil
}

// FoldResult holds the error metrics for one expanding-window fold.
type FoldResult struct {
	Fold      int     `json:"fold"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
}

// AggregateMetrics summarizes prediction error over historical points.
type AggregateMetrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// ModelReport bundles a model's generated series with its scores.
type ModelReport struct {
	Model   ModelType        `json:"model"`
	Points  []PricePoint     `json:"points"`
	Metrics AggregateMetrics `json:"metrics"`
	Folds   []FoldResult     `json:"folds"`
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End].
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}
