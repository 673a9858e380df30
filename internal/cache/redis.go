package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"price_forecast/internal/model"
)

const (
	defaultPrefix = "forecast:"
	weatherKey    = "weather"
	pricesKey     = "prices"
)

// entry is the stored form of one feed.
type entry[T any] struct {
	Points   []T       `json:"points"`
	CachedAt time.Time `json:"cached_at"`
}

// Stats counts cache traffic.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// RedisFeedCache stores feeds as JSON values with a TTL.
type RedisFeedCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger logrus.FieldLogger
	now    func() time.Time

	hits, misses, sets atomic.Int64
}

func NewRedisFeedCache(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *RedisFeedCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisFeedCache{
		client: client,
		ttl:    ttl,
		prefix: defaultPrefix,
		logger: logger,
		now:    time.Now,
	}
}

// Ping checks that Redis is reachable.
func (c *RedisFeedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisFeedCache) SaveWeather(ctx context.Context, points []model.WeatherPoint) error {
	return save(ctx, c, weatherKey, points)
}

func (c *RedisFeedCache) LoadWeather(ctx context.Context) ([]model.WeatherPoint, time.Time, error) {
	return load[model.WeatherPoint](ctx, c, weatherKey)
}

func (c *RedisFeedCache) SavePrices(ctx context.Context, points []model.SpotPricePoint) error {
	return save(ctx, c, pricesKey, points)
}

func (c *RedisFeedCache) LoadPrices(ctx context.Context) ([]model.SpotPricePoint, time.Time, error) {
	return load[model.SpotPricePoint](ctx, c, pricesKey)
}

// Stats returns a snapshot of the traffic counters.
func (c *RedisFeedCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
	}
}

func save[T any](ctx context.Context, c *RedisFeedCache, name string, points []T) error {
	data, err := json.Marshal(entry[T]{Points: points, CachedAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := c.client.Set(ctx, c.prefix+name, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	c.sets.Add(1)
	c.logger.WithFields(logrus.Fields{
		"feed":   name,
		"points": len(points),
		"ttl":    c.ttl.String(),
	}).Debug("feed cached")
	return nil
}

func load[T any](ctx context.Context, c *RedisFeedCache, name string) ([]T, time.Time, error) {
	data, err := c.client.Get(ctx, c.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, time.Time{}, ErrMiss
	}
	if err != nil {
		c.misses.Add(1)
		return nil, time.Time{}, fmt.Errorf("loading %s: %w", name, err)
	}

	var e entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		c.misses.Add(1)
		return nil, time.Time{}, fmt.Errorf("decoding %s: %w", name, err)
	}
	c.hits.Add(1)
	return e.Points, e.CachedAt, nil
}
