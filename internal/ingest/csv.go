package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"price_forecast/internal/model"
	"price_forecast/internal/predictor"
)

var (
	weatherHeader     = []string{"time", "temperature", "is_forecast"}
	priceHeader       = []string{"timestamp", "price", "is_future"}
	sensorPriceHeader = []string{"sensor_id", "value", "updated_ts"}
)

// WeatherCSVParser parses weather timelines.
//
// Expected format:
//
//	time,temperature,is_forecast
//	2024-11-21T12:00:00Z,-3.4,false
type WeatherCSVParser struct{}

func (p *WeatherCSVParser) Parse(r io.Reader) ([]model.WeatherPoint, error) {
	var points []model.WeatherPoint
	err := readCSV(r, func(header []string) error {
		return validateHeader(header, weatherHeader)
	}, func(record []string, lineNum int) error {
		wp, err := parseWeatherRecord(record, lineNum)
		if err != nil {
			return err
		}
		points = append(points, wp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

func parseWeatherRecord(record []string, lineNum int) (model.WeatherPoint, error) {
	if len(record) < 3 {
		return model.WeatherPoint{}, fmt.Errorf("line %d: expected 3 fields, got %d", lineNum, len(record))
	}
	ts, ok := predictor.ParseTimestamp(record[0])
	if !ok {
		return model.WeatherPoint{}, fmt.Errorf("line %d: parsing time %q", lineNum, record[0])
	}
	temp, err := parseFinite(record[1])
	if err != nil {
		return model.WeatherPoint{}, fmt.Errorf("line %d: parsing temperature: %w", lineNum, err)
	}
	forecast, err := strconv.ParseBool(strings.TrimSpace(record[2]))
	if err != nil {
		return model.WeatherPoint{}, fmt.Errorf("line %d: parsing is_forecast: %w", lineNum, err)
	}
	return model.WeatherPoint{Time: ts, Temperature: temp, IsForecast: forecast}, nil
}

// PriceCSVParser parses spot price exports in either of two layouts:
//
//	timestamp,price,is_future
//	2024-11-21T12:00:00Z,45.12,false
//
// or the sensor layout written by fetch-prices:
//
//	sensor_id,value,updated_ts
//	spot_price_fi,45.1200,1732190400
//
// In the sensor layout a price is in the future when its timestamp is after Now.
// The result is sorted by timestamp.
type PriceCSVParser struct {
	Now time.Time
}

func (p *PriceCSVParser) Parse(r io.Reader) ([]model.SpotPricePoint, error) {
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	sensorLayout := false
	var points []model.SpotPricePoint
	err := readCSV(r, func(header []string) error {
		if validateHeader(header, sensorPriceHeader) == nil {
			sensorLayout = true
			return nil
		}
		return validateHeader(header, priceHeader)
	}, func(record []string, lineNum int) error {
		if len(record) < 3 {
			return fmt.Errorf("line %d: expected 3 fields, got %d", lineNum, len(record))
		}
		tsField, priceField := record[0], record[1]
		if sensorLayout {
			tsField, priceField = record[2], record[1]
		}
		ts, ok := predictor.ParseTimestamp(tsField)
		if !ok {
			return fmt.Errorf("line %d: parsing timestamp %q", lineNum, tsField)
		}
		price, err := parseFinite(priceField)
		if err != nil {
			return fmt.Errorf("line %d: parsing price: %w", lineNum, err)
		}
		future := ts.After(now)
		if !sensorLayout {
			future, err = strconv.ParseBool(strings.TrimSpace(record[2]))
			if err != nil {
				return fmt.Errorf("line %d: parsing is_future: %w", lineNum, err)
			}
		}
		points = append(points, model.SpotPricePoint{Timestamp: ts, Price: price, IsFuture: future})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// readCSV validates the header and feeds each record to row. Rows for which
// row returns an error are skipped.
func readCSV(r io.Reader, header func([]string) error, row func([]string, int) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		return fmt.Errorf("reading CSV header: %w", err)
	}
	if err := header(h); err != nil {
		return err
	}

	lineNum := 1
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		// Skip unparseable rows (e.g. "unavailable" values)
		_ = row(record, lineNum)
	}
}

func validateHeader(header, expected []string) error {
	if len(header) < len(expected) {
		return fmt.Errorf("expected at least %d columns, got %d", len(expected), len(header))
	}
	for i, col := range expected {
		if strings.TrimSpace(header[i]) != col {
			return fmt.Errorf("expected column %d to be %q, got %q", i, col, header[i])
		}
	}
	return nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
