package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"price_forecast/internal/cache"
	"price_forecast/internal/ingest"
	"price_forecast/internal/model"
)

const (
	feedWeather = "weather"
	feedPrices  = "prices"
)

// gather fetches both feeds concurrently and applies the fallbacks: weather
// falls back to the cached copy and then to a synthetic timeline, prices
// fall back to the cached copy and then to nothing. Neither feed waits on
// the other's failure.
func (e *Engine) gather(ctx context.Context, runID string) (model.FeedSnapshot, []Warning) {
	now := e.now().UTC()
	snap := model.FeedSnapshot{RunID: runID, FetchedAt: now}

	var weatherWarn, priceWarn []Warning
	var g errgroup.Group

	g.Go(func() error {
		snap.Weather, snap.WeatherSource, weatherWarn = e.gatherWeather(ctx, runID, now)
		return nil
	})
	g.Go(func() error {
		snap.Prices, snap.PriceSource, priceWarn = e.gatherPrices(ctx, runID, now)
		return nil
	})
	_ = g.Wait()

	warnings := append(weatherWarn, priceWarn...)
	for _, w := range warnings {
		snap.Warnings = append(snap.Warnings, w.Message)
	}
	return snap, warnings
}

func (e *Engine) gatherWeather(ctx context.Context, runID string, now time.Time) ([]model.WeatherPoint, model.FeedSource, []Warning) {
	points, err := e.weather.FetchWeather(ctx)
	if err == nil && len(points) > 0 {
		if err := e.cache.SaveWeather(ctx, points); err != nil {
			e.logger.WithError(err).WithField("run_id", runID).Warn("caching weather failed")
		}
		return points, model.SourceLive, nil
	}
	if err == nil {
		err = ingest.ErrEmptyFeed
	}

	warnings := []Warning{e.warning(runID, feedWeather, fmt.Sprintf("weather feed unavailable: %v", err))}

	cached, cachedAt, cerr := e.cache.LoadWeather(ctx)
	if cerr == nil && len(cached) > 0 {
		warnings = append(warnings, e.warning(runID, feedWeather,
			fmt.Sprintf("using cached weather from %s", cachedAt.Format(time.RFC3339))))
		return cached, model.SourceCache, warnings
	}
	if cerr != nil && !errors.Is(cerr, cache.ErrMiss) {
		e.logger.WithError(cerr).WithField("run_id", runID).Warn("loading cached weather failed")
	}

	warnings = append(warnings, e.warning(runID, feedWeather, "using synthetic weather"))
	return ingest.SyntheticWeather(now, syntheticSeed(now)), model.SourceSynthetic, warnings
}

func (e *Engine) gatherPrices(ctx context.Context, runID string, now time.Time) ([]model.SpotPricePoint, model.FeedSource, []Warning) {
	points, err := e.prices.FetchPrices(ctx)
	if err == nil && len(points) > 0 {
		if err := e.cache.SavePrices(ctx, points); err != nil {
			e.logger.WithError(err).WithField("run_id", runID).Warn("caching prices failed")
		}
		return points, model.SourceLive, nil
	}
	if err == nil {
		err = ingest.ErrEmptyFeed
	}

	warnings := []Warning{e.warning(runID, feedPrices, fmt.Sprintf("price feed unavailable: %v", err))}

	cached, cachedAt, cerr := e.cache.LoadPrices(ctx)
	if cerr == nil && len(cached) > 0 {
		warnings = append(warnings, e.warning(runID, feedPrices,
			fmt.Sprintf("using cached prices from %s", cachedAt.Format(time.RFC3339))))
		return markFuture(cached, now), model.SourceCache, warnings
	}
	if cerr != nil && !errors.Is(cerr, cache.ErrMiss) {
		e.logger.WithError(cerr).WithField("run_id", runID).Warn("loading cached prices failed")
	}

	warnings = append(warnings, e.warning(runID, feedPrices, "continuing without market prices"))
	return []model.SpotPricePoint{}, model.SourceNone, warnings
}

func (e *Engine) warning(runID, feed, msg string) Warning {
	return Warning{RunID: runID, Feed: feed, Message: msg, At: e.now().UTC()}
}

// markFuture re-derives IsFuture for prices cached by an earlier refresh.
func markFuture(points []model.SpotPricePoint, now time.Time) []model.SpotPricePoint {
	out := make([]model.SpotPricePoint, len(points))
	for i, p := range points {
		p.IsFuture = p.Timestamp.After(now)
		out[i] = p
	}
	return out
}

// syntheticSeed keeps the fallback timeline stable within an hour.
func syntheticSeed(now time.Time) uint64 {
	return uint64(now.Unix() / 3600)
}
