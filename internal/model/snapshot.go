package model

import "time"

// FeedSource says where a feed's data came from in a refresh.
type FeedSource string

const (
	SourceLive      FeedSource = "live"
	SourceCache     FeedSource = "cache"
	SourceSynthetic FeedSource = "synthetic"
	SourceNone      FeedSource = "none"
)

// FeedSnapshot is the input data gathered by one refresh.
type FeedSnapshot struct {
	RunID         string           `json:"run_id"`
	FetchedAt     time.Time        `json:"fetched_at"`
	Weather       []WeatherPoint   `json:"weather"`
	Prices        []SpotPricePoint `json:"prices"`
	WeatherSource FeedSource       `json:"weather_source"`
	PriceSource   FeedSource       `json:"price_source"`
	Warnings      []string         `json:"warnings,omitempty"`
}

// Forecast is one published result. Seq increases with every publication so
// consumers can discard stale results.
type Forecast struct {
	Seq         uint64                         `json:"seq"`
	RunID       string                         `json:"run_id"`
	Model       ModelType                      `json:"model"`
	GeneratedAt time.Time                      `json:"generated_at"`
	Points      []PricePoint                   `json:"points"`
	Metrics     AggregateMetrics               `json:"metrics"`
	Folds       []FoldResult                   `json:"folds"`
	AllMetrics  map[ModelType]AggregateMetrics `json:"all_metrics"`
	// NextHour is the one-step horizon estimate from the latest observed
	// price and temperature; nil when no price has been observed.
	NextHour      *float64   `json:"next_hour,omitempty"`
	WeatherSource FeedSource `json:"weather_source"`
	PriceSource   FeedSource `json:"price_source"`
	Warnings      []string   `json:"warnings,omitempty"`
}
