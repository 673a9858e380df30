package ingest

import (
	"context"
	"errors"
	"io"

	"price_forecast/internal/model"
)

var (
	// ErrUpstreamStatus is returned when a feed answers with a non-2xx status.
	ErrUpstreamStatus = errors.New("unexpected upstream status")
	// ErrRateLimited is returned when a feed keeps answering 429 after all retries.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrEmptyFeed is returned when a feed answers successfully with no usable data.
	ErrEmptyFeed = errors.New("upstream returned no data")
)

// WeatherFetcher returns a temperature timeline around the current time.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context) ([]model.WeatherPoint, error)
}

// PriceFetcher returns day-ahead spot prices sorted by time.
type PriceFetcher interface {
	FetchPrices(ctx context.Context) ([]model.SpotPricePoint, error)
}

// WeatherParser reads a weather timeline from a source.
type WeatherParser interface {
	Parse(r io.Reader) ([]model.WeatherPoint, error)
}

// PriceParser reads spot prices from a source.
type PriceParser interface {
	Parse(r io.Reader) ([]model.SpotPricePoint, error)
}
