package ingest

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"price_forecast/internal/model"
)

// DefaultEnergyChartsURL is the public Energy-Charts API.
const DefaultEnergyChartsURL = "https://api.energy-charts.info"

type energyChartsResponse struct {
	UnixSeconds []int64    `json:"unix_seconds"`
	Price       []*float64 `json:"price"`
	Unit        string     `json:"unit"`
}

// EnergyChartsClient fetches day-ahead spot prices (EUR/MWh) for one bidding zone.
type EnergyChartsClient struct {
	BaseURL     string
	BiddingZone string
	// Past and Ahead bound the window fetched around Now.
	Past  time.Duration
	Ahead time.Duration
	Now   func() time.Time

	getter retryingGetter
}

func NewEnergyChartsClient(baseURL, biddingZone string, logger logrus.FieldLogger) *EnergyChartsClient {
	if baseURL == "" {
		baseURL = DefaultEnergyChartsURL
	}
	return &EnergyChartsClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		BiddingZone: biddingZone,
		Past:        7 * 24 * time.Hour,
		Ahead:       36 * time.Hour,
		Now:         time.Now,
		getter:      newRetryingGetter(logger),
	}
}

// SetRetryPolicy overrides the 429 back-off schedule.
func (c *EnergyChartsClient) SetRetryPolicy(maxRetries int, wait time.Duration) {
	c.getter.maxRetries = maxRetries
	c.getter.retryWait = wait
}

// SetTimeout overrides the per-request HTTP timeout.
func (c *EnergyChartsClient) SetTimeout(d time.Duration) {
	c.getter.client.Timeout = d
}

// FetchPrices returns prices from Now-Past to Now+Ahead.
func (c *EnergyChartsClient) FetchPrices(ctx context.Context) ([]model.SpotPricePoint, error) {
	now := c.Now().UTC()
	start := now.Add(-c.Past).Truncate(time.Hour)
	end := now.Add(c.Ahead)

	points, err := c.FetchRange(ctx, start, end, now)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrEmptyFeed
	}
	return points, nil
}

// FetchRange returns the prices in [start, end]; points after now are marked as future.
func (c *EnergyChartsClient) FetchRange(ctx context.Context, start, end, now time.Time) ([]model.SpotPricePoint, error) {
	q := url.Values{}
	q.Set("bzn", c.BiddingZone)
	q.Set("start", start.UTC().Format("2006-01-02T15:04Z"))
	q.Set("end", end.UTC().Format("2006-01-02T15:04Z"))
	endpoint := c.BaseURL + "/price?" + q.Encode()

	var data energyChartsResponse
	if err := c.getter.getJSON(ctx, endpoint, &data); err != nil {
		return nil, fmt.Errorf("fetching %s prices: %w", c.BiddingZone, err)
	}
	if len(data.UnixSeconds) != len(data.Price) {
		return nil, fmt.Errorf("mismatched arrays: %d timestamps, %d prices",
			len(data.UnixSeconds), len(data.Price))
	}

	points := make([]model.SpotPricePoint, 0, len(data.Price))
	for i, ts := range data.UnixSeconds {
		p := data.Price[i]
		if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
			continue
		}
		t := time.Unix(ts, 0).UTC()
		points = append(points, model.SpotPricePoint{
			Timestamp: t,
			Price:     *p,
			IsFuture:  t.After(now),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}
