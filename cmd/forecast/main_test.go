package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_forecast/internal/config"
	"price_forecast/internal/model"
	"price_forecast/internal/predictor"
)

var start = time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)

// fixture returns 48 observed hours with prices followed by 12 forecast hours.
func fixture() ([]model.WeatherPoint, []model.SpotPricePoint) {
	var weather []model.WeatherPoint
	var prices []model.SpotPricePoint
	for i := 0; i < 60; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		weather = append(weather, model.WeatherPoint{
			Time:        ts,
			Temperature: -4 + float64(i%24)/4,
			IsForecast:  i >= 48,
		})
		if i < 48 {
			prices = append(prices, model.SpotPricePoint{Timestamp: ts, Price: 40 + float64(i%24)})
		}
	}
	return weather, prices
}

func TestWriteReport(t *testing.T) {
	weather, prices := fixture()

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, weather, prices, model.ModelLinearRegression, false))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Model: Linear Regression\n"))
	assert.Contains(t, out, "2024-11-20 00:00")
	assert.Contains(t, out, "2024-11-22 11:00")
	for _, m := range model.AllModels() {
		assert.Contains(t, out, string(m))
	}
	assert.Contains(t, out, "Fold")
	assert.NotContains(t, out, "Lag1")
	assert.Equal(t, 12, strings.Count(out, " *\n"), "forecast hours are marked")
}

func TestWriteReport_Explain(t *testing.T) {
	weather, prices := fixture()

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, weather, prices, model.ModelGradientBoosting, true))
	assert.Contains(t, buf.String(), "HourMean")
}

func TestWriteReport_NoHistory(t *testing.T) {
	weather, _ := fixture()

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, weather, nil, model.ModelRandomForest, false))
	assert.Contains(t, buf.String(), "Cross-validation: not enough history")
}

func TestWriteCSV(t *testing.T) {
	weather, prices := fixture()
	points := predictor.GenerateWithFeatures(weather, prices, model.ModelGradientBoosting)

	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, points, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 61)
	assert.Equal(t, "timestamp,temperature,actual_price,predicted_price,is_future", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-11-20T00:00:00Z,-4.0,40.00,"))
	assert.True(t, strings.HasSuffix(lines[60], ",true"))
	assert.Contains(t, lines[60], ",,", "forecast rows have no actual price")

	buf.Reset()
	require.NoError(t, writeCSV(&buf, points, true))
	header, _, _ := strings.Cut(buf.String(), "\n")
	assert.True(t, strings.HasSuffix(header, ",lag1,lag24,hour_mean,centered_demand"))
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	weatherPath := filepath.Join(dir, "weather.csv")
	pricesPath := filepath.Join(dir, "prices.csv")

	require.NoError(t, os.WriteFile(weatherPath, []byte(
		"time,temperature,is_forecast\n"+
			"2024-11-21T12:00:00Z,-3.4,false\n"+
			"2024-11-21T13:00:00Z,unavailable,false\n"+
			"2024-11-21T14:00:00Z,-2.0,true\n"), 0o644))
	require.NoError(t, os.WriteFile(pricesPath, []byte(
		"sensor_id,value,updated_ts\n"+
			"sensor.spot_price_fi,45.1200,1732190400\n"+
			"sensor.spot_price_fi,50.0000,1732197600\n"), 0o644))

	now := time.Date(2024, 11, 21, 13, 0, 0, 0, time.UTC)
	weather, prices, err := loadCSV(weatherPath, pricesPath, now)
	require.NoError(t, err)
	assert.Len(t, weather, 2)
	require.Len(t, prices, 2)
	assert.False(t, prices[0].IsFuture)
	assert.True(t, prices[1].IsFuture)

	weather, prices, err = loadCSV("", "", now)
	require.NoError(t, err)
	assert.Empty(t, weather)
	assert.Empty(t, prices)

	_, _, err = loadCSV(filepath.Join(dir, "missing.csv"), "", now)
	assert.Error(t, err)
}

func TestFetchLive(t *testing.T) {
	logger, _ := test.NewNullLogger()
	now := time.Now().UTC().Truncate(time.Hour)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	prices := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FI", r.URL.Query().Get("bzn"))
		body, _ := json.Marshal(map[string]any{
			"unix_seconds": []int64{now.Add(-time.Hour).Unix(), now.Add(time.Hour).Unix()},
			"price":        []float64{42.5, 55},
		})
		w.Write(body)
	}))
	defer prices.Close()

	cfg := &config.Config{
		Weather: config.WeatherConfig{BaseURL: down.URL, Latitude: 60.1699, Longitude: 24.9384, Timeout: 5 * time.Second},
		Prices:  config.PricesConfig{BaseURL: prices.URL, BiddingZone: "FI", Timeout: 5 * time.Second},
	}

	t.Run("weather failure is tolerated", func(t *testing.T) {
		weather, got, err := fetchLive(context.Background(), cfg, logger)
		require.NoError(t, err)
		assert.Empty(t, weather)
		require.Len(t, got, 2)
		assert.True(t, got[1].IsFuture)
	})

	t.Run("price failure is fatal", func(t *testing.T) {
		broken := *cfg
		broken.Prices.BaseURL = down.URL
		_, _, err := fetchLive(context.Background(), &broken, logger)
		assert.ErrorContains(t, err, "fetching prices")
	})
}
