// fetch-prices downloads historical day-ahead spot prices for one bidding zone
// (Finland by default) from the Energy-Charts API (https://api.energy-charts.info)
// and writes them as CSV in EUR/MWh. The default sensor layout
// (sensor_id,value,updated_ts) and the price layout (timestamp,price,is_future)
// are both readable by the forecast tool.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"price_forecast/internal/ingest"
	"price_forecast/internal/logging"
	"price_forecast/internal/model"
)

func main() {
	startDate := flag.String("start", "", "start date (YYYY-MM-DD), defaults to 30 days ago")
	endDate := flag.String("end", "", "end date (YYYY-MM-DD), defaults to tomorrow")
	zone := flag.String("bzn", "FI", "Energy-Charts bidding zone")
	baseURL := flag.String("base-url", ingest.DefaultEnergyChartsURL, "Energy-Charts API base URL")
	output := flag.String("output", "input/spot_prices_fi.csv", "output CSV path")
	layout := flag.String("layout", layoutSensor, "CSV layout: sensor or prices")
	sensorID := flag.String("sensor-id", "sensor.spot_price_fi", "sensor ID in sensor layout")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.New(*logLevel, "text")

	now := time.Now().UTC()
	start, end, err := parseWindow(*startDate, *endDate, now)
	if err != nil {
		logger.WithError(err).Fatal("invalid date range")
	}
	if *layout != layoutSensor && *layout != layoutPrices {
		logger.Fatalf("unknown layout %q", *layout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := ingest.NewEnergyChartsClient(*baseURL, *zone, logger)

	logger.WithFields(logrus.Fields{
		"zone":  *zone,
		"start": start.Format("2006-01-02"),
		"end":   end.Format("2006-01-02"),
	}).Info("fetching spot prices")

	points, err := fetchChunked(ctx, client, start, end, now, logger, time.Second)
	if err != nil {
		logger.WithError(err).Fatal("fetching prices")
	}

	f, err := os.Create(*output)
	if err != nil {
		logger.WithError(err).Fatal("creating output file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeCSV(w, *layout, *sensorID, points); err != nil {
		logger.WithError(err).Fatal("writing CSV")
	}
	if err := w.Flush(); err != nil {
		logger.WithError(err).Fatal("writing CSV")
	}

	logger.WithFields(logrus.Fields{
		"records": len(points),
		"output":  *output,
	}).Info("prices written")
}

const (
	layoutSensor = "sensor"
	layoutPrices = "prices"
)

// rangeFetcher is the part of the Energy-Charts client used here.
type rangeFetcher interface {
	FetchRange(ctx context.Context, start, end, now time.Time) ([]model.SpotPricePoint, error)
}

func parseWindow(startRaw, endRaw string, now time.Time) (time.Time, time.Time, error) {
	today := now.Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -30)
	end := today.AddDate(0, 0, 1)

	var err error
	if startRaw != "" {
		if start, err = time.Parse("2006-01-02", startRaw); err != nil {
			return start, end, fmt.Errorf("start date: %w", err)
		}
	}
	if endRaw != "" {
		if end, err = time.Parse("2006-01-02", endRaw); err != nil {
			return start, end, fmt.Errorf("end date: %w", err)
		}
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("end %s is not after start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return start, end, nil
}

// fetchChunked fetches [start, end) in monthly chunks to stay within API
// limits, pausing between requests, and returns sorted unique prices.
func fetchChunked(ctx context.Context, c rangeFetcher, start, end, now time.Time, logger logrus.FieldLogger, pause time.Duration) ([]model.SpotPricePoint, error) {
	var points []model.SpotPricePoint

	chunkStart := start
	for chunkStart.Before(end) {
		chunkEnd := chunkStart.AddDate(0, 1, 0)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		logger.WithFields(logrus.Fields{
			"from": chunkStart.Format("2006-01-02"),
			"to":   chunkEnd.Format("2006-01-02"),
		}).Debug("fetching chunk")

		chunk, err := c.FetchRange(ctx, chunkStart, chunkEnd, now)
		if err != nil {
			return nil, fmt.Errorf("%s → %s: %w", chunkStart.Format("2006-01-02"), chunkEnd.Format("2006-01-02"), err)
		}
		points = append(points, chunk...)

		chunkStart = chunkEnd
		if chunkStart.Before(end) && pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pause):
			}
		}
	}

	return dedupe(points), nil
}

// dedupe sorts by timestamp and keeps the last price seen for each instant.
func dedupe(points []model.SpotPricePoint) []model.SpotPricePoint {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(p.Timestamp) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func writeCSV(w io.Writer, layout, sensorID string, points []model.SpotPricePoint) error {
	switch layout {
	case layoutPrices:
		if _, err := fmt.Fprintln(w, "timestamp,price,is_future"); err != nil {
			return err
		}
		for _, p := range points {
			if _, err := fmt.Fprintf(w, "%s,%.2f,%t\n", p.Timestamp.UTC().Format(time.RFC3339), p.Price, p.IsFuture); err != nil {
				return err
			}
		}
	default:
		if _, err := fmt.Fprintln(w, "sensor_id,value,updated_ts"); err != nil {
			return err
		}
		for _, p := range points {
			if _, err := fmt.Fprintf(w, "%s,%.4f,%d\n", sensorID, p.Price, p.Timestamp.Unix()); err != nil {
				return err
			}
		}
	}
	return nil
}
