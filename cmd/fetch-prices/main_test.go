package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_forecast/internal/ingest"
	"price_forecast/internal/model"
)

var day = time.Date(2024, 11, 21, 0, 0, 0, 0, time.UTC)

type chunkFetcher struct {
	calls [][2]time.Time
	err   error
}

func (f *chunkFetcher) FetchRange(_ context.Context, start, end, now time.Time) ([]model.SpotPricePoint, error) {
	f.calls = append(f.calls, [2]time.Time{start, end})
	if f.err != nil {
		return nil, f.err
	}
	// Overlap the chunk boundary by one hour.
	return []model.SpotPricePoint{
		{Timestamp: start, Price: float64(len(f.calls))},
		{Timestamp: end, Price: float64(len(f.calls))},
	}, nil
}

func TestParseWindow(t *testing.T) {
	now := day.Add(15 * time.Hour)

	start, end, err := parseWindow("", "", now)
	require.NoError(t, err)
	assert.Equal(t, day.AddDate(0, 0, -30), start)
	assert.Equal(t, day.AddDate(0, 0, 1), end)

	start, end, err = parseWindow("2024-01-01", "2024-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = parseWindow("2024-13-01", "", now)
	assert.Error(t, err)
	_, _, err = parseWindow("2024-03-01", "2024-01-01", now)
	assert.Error(t, err)
}

func TestFetchChunked(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := &chunkFetcher{}
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	points, err := fetchChunked(context.Background(), f, start, end, day, logger, 0)
	require.NoError(t, err)

	require.Len(t, f.calls, 3)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), f.calls[0][1])
	assert.Equal(t, end, f.calls[2][1])

	// Boundaries fetched twice keep the later chunk's value.
	require.Len(t, points, 4)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), points[1].Timestamp)
	assert.Equal(t, 2.0, points[1].Price)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Timestamp.After(points[i-1].Timestamp))
	}
}

func TestFetchChunked_Error(t *testing.T) {
	logger, _ := test.NewNullLogger()
	f := &chunkFetcher{err: ingest.ErrRateLimited}

	_, err := fetchChunked(context.Background(), f, day, day.AddDate(0, 2, 0), day, logger, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ingest.ErrRateLimited))
	assert.Len(t, f.calls, 1)
}

func TestWriteCSV_RoundTripsThroughParser(t *testing.T) {
	points := []model.SpotPricePoint{
		{Timestamp: day.Add(12 * time.Hour), Price: 45.12},
		{Timestamp: day.Add(13 * time.Hour), Price: -1.5, IsFuture: true},
	}

	t.Run("sensor", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCSV(&buf, layoutSensor, "sensor.spot_price_fi", points))
		assert.True(t, strings.HasPrefix(buf.String(), "sensor_id,value,updated_ts\n"))
		assert.Contains(t, buf.String(), "sensor.spot_price_fi,45.1200,1732190400\n")

		parsed, err := (&ingest.PriceCSVParser{Now: day.Add(12 * time.Hour)}).Parse(&buf)
		require.NoError(t, err)
		require.Len(t, parsed, 2)
		assert.InDelta(t, -1.5, parsed[1].Price, 1e-9)
		assert.True(t, parsed[1].IsFuture)
	})

	t.Run("prices", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCSV(&buf, layoutPrices, "", points))
		assert.Contains(t, buf.String(), "2024-11-21T13:00:00Z,-1.50,true\n")

		parsed, err := (&ingest.PriceCSVParser{}).Parse(&buf)
		require.NoError(t, err)
		require.Len(t, parsed, 2)
		assert.Equal(t, points[0].Timestamp, parsed[0].Timestamp)
	})
}
