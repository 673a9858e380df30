package cache

import (
	"context"
	"errors"
	"time"

	"price_forecast/internal/model"
)

// ErrMiss is returned when no cached copy of a feed exists.
var ErrMiss = errors.New("cache miss")

// FeedCache keeps the last good copy of each upstream feed so a refresh can
// fall back to it when the feed is unavailable.
type FeedCache interface {
	SaveWeather(ctx context.Context, points []model.WeatherPoint) error
	LoadWeather(ctx context.Context) ([]model.WeatherPoint, time.Time, error)
	SavePrices(ctx context.Context, points []model.SpotPricePoint) error
	LoadPrices(ctx context.Context) ([]model.SpotPricePoint, time.Time, error)
}

// NoopCache stores nothing; every load is a miss.
type NoopCache struct{}

func (NoopCache) SaveWeather(context.Context, []model.WeatherPoint) error { return nil }

func (NoopCache) LoadWeather(context.Context) ([]model.WeatherPoint, time.Time, error) {
	return nil, time.Time{}, ErrMiss
}

func (NoopCache) SavePrices(context.Context, []model.SpotPricePoint) error { return nil }

func (NoopCache) LoadPrices(context.Context) ([]model.SpotPricePoint, time.Time, error) {
	return nil, time.Time{}, ErrMiss
}
