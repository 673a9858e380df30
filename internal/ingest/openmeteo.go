package ingest

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"price_forecast/internal/model"
	"price_forecast/internal/predictor"
)

// DefaultOpenMeteoURL is the public Open-Meteo forecast API.
const DefaultOpenMeteoURL = "https://api.open-meteo.com"

// Helsinki city centre.
const (
	HelsinkiLatitude  = 60.1699
	HelsinkiLongitude = 24.9384
)

type openMeteoResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature2m []*float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// OpenMeteoClient fetches observed and forecast hourly temperatures.
type OpenMeteoClient struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	// PastHours and ForecastHours bound the returned timeline around Now.
	PastHours     int
	ForecastHours int
	Now           func() time.Time

	getter retryingGetter
}

func NewOpenMeteoClient(baseURL string, lat, lon float64, logger logrus.FieldLogger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoClient{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		Latitude:      lat,
		Longitude:     lon,
		PastHours:     24,
		ForecastHours: 12,
		Now:           time.Now,
		getter:        newRetryingGetter(logger),
	}
}

// SetRetryPolicy overrides the 429 back-off schedule.
func (c *OpenMeteoClient) SetRetryPolicy(maxRetries int, wait time.Duration) {
	c.getter.maxRetries = maxRetries
	c.getter.retryWait = wait
}

// SetTimeout overrides the per-request HTTP timeout.
func (c *OpenMeteoClient) SetTimeout(d time.Duration) {
	c.getter.client.Timeout = d
}

// FetchWeather returns hourly temperatures from Now-PastHours to Now+ForecastHours.
// Samples after Now are marked as forecast.
func (c *OpenMeteoClient) FetchWeather(ctx context.Context) ([]model.WeatherPoint, error) {
	now := c.Now().UTC()
	pastDays := (c.PastHours + 23) / 24
	forecastDays := (c.ForecastHours+23)/24 + 1

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(c.Longitude, 'f', 4, 64))
	q.Set("hourly", "temperature_2m")
	q.Set("timezone", "UTC")
	q.Set("past_days", strconv.Itoa(pastDays))
	q.Set("forecast_days", strconv.Itoa(forecastDays))
	endpoint := c.BaseURL + "/v1/forecast?" + q.Encode()

	var data openMeteoResponse
	if err := c.getter.getJSON(ctx, endpoint, &data); err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	if len(data.Hourly.Time) != len(data.Hourly.Temperature2m) {
		return nil, fmt.Errorf("mismatched arrays: %d times, %d temperatures",
			len(data.Hourly.Time), len(data.Hourly.Temperature2m))
	}

	from := now.Add(-time.Duration(c.PastHours) * time.Hour)
	to := now.Add(time.Duration(c.ForecastHours) * time.Hour)
	window := model.TimeRange{Start: from, End: to}

	var points []model.WeatherPoint
	for i, raw := range data.Hourly.Time {
		temp := data.Hourly.Temperature2m[i]
		if temp == nil || math.IsNaN(*temp) || math.IsInf(*temp, 0) {
			continue
		}
		ts, ok := predictor.ParseTimestamp(raw)
		if !ok || !window.Contains(ts) {
			continue
		}
		points = append(points, model.WeatherPoint{
			Time:        ts,
			Temperature: *temp,
			IsForecast:  ts.After(now),
		})
	}
	if len(points) == 0 {
		return nil, ErrEmptyFeed
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	return points, nil
}
