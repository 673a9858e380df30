// forecast runs the spot price models offline against a weather timeline and
// a price history, and prints the generated series with its scores.
//
// Usage:
//
//	forecast -weather input/weather.csv -prices input/spot_prices_fi.csv
//	forecast -prices input/spot_prices_fi.csv -model "Linear Regression" -explain
//	forecast -live -csv > forecast.csv
//
// Without -weather (and without -live) a synthetic Helsinki timeline is used.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"price_forecast/internal/config"
	"price_forecast/internal/ingest"
	"price_forecast/internal/logging"
	"price_forecast/internal/model"
	"price_forecast/internal/predictor"
)

func main() {
	weatherPath := flag.String("weather", "", "weather CSV (time,temperature,is_forecast)")
	pricesPath := flag.String("prices", "", "spot price CSV (either layout written by fetch-prices)")
	live := flag.Bool("live", false, "fetch weather and prices from the configured upstreams")
	configPath := flag.String("config", "", "config file used with -live (default: ./configs/config.yaml)")
	modelName := flag.String("model", string(model.DefaultModel), "model to print the series for")
	explain := flag.Bool("explain", false, "print the blend inputs of every point")
	csvOut := flag.Bool("csv", false, "output the series as CSV")
	seed := flag.Uint64("seed", 0, "seed for the synthetic weather fallback (0 = current hour)")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger := logging.New(*logLevel, "text")
	now := time.Now().UTC()

	var (
		weather []model.WeatherPoint
		prices  []model.SpotPricePoint
		err     error
	)
	if *live {
		cfg, cerr := loadConfig(*configPath)
		if cerr != nil {
			logger.WithError(cerr).Fatal("loading config")
		}
		weather, prices, err = fetchLive(context.Background(), cfg, logger)
	} else {
		weather, prices, err = loadCSV(*weatherPath, *pricesPath, now)
	}
	if err != nil {
		logger.WithError(err).Fatal("loading inputs")
	}

	if len(weather) == 0 {
		s := *seed
		if s == 0 {
			s = uint64(now.Unix() / 3600)
		}
		logger.WithField("seed", s).Warn("no weather input, using synthetic timeline")
		weather = ingest.SyntheticWeather(now, s)
	}

	if !model.Known(*modelName) {
		logger.WithField("model", *modelName).Warnf("unknown model, using %s", model.DefaultModel)
	}
	selected := model.ParseModelType(*modelName)

	logger.WithFields(logrus.Fields{
		"weather": len(weather),
		"prices":  len(prices),
		"model":   selected,
	}).Info("generating forecast")

	if *csvOut {
		err = writeCSV(os.Stdout, predictor.GenerateWithFeatures(weather, prices, selected), *explain)
	} else {
		err = writeReport(os.Stdout, weather, prices, selected, *explain)
	}
	if err != nil {
		logger.WithError(err).Fatal("writing output")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func loadCSV(weatherPath, pricesPath string, now time.Time) ([]model.WeatherPoint, []model.SpotPricePoint, error) {
	var (
		weather []model.WeatherPoint
		prices  []model.SpotPricePoint
	)
	if weatherPath != "" {
		f, err := os.Open(weatherPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening weather CSV: %w", err)
		}
		defer f.Close()
		if weather, err = (&ingest.WeatherCSVParser{}).Parse(f); err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", weatherPath, err)
		}
	}
	if pricesPath != "" {
		f, err := os.Open(pricesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening price CSV: %w", err)
		}
		defer f.Close()
		if prices, err = (&ingest.PriceCSVParser{Now: now}).Parse(f); err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", pricesPath, err)
		}
	}
	return weather, prices, nil
}

// fetchLive queries both upstreams concurrently. A failed weather fetch leaves
// the timeline empty so the synthetic fallback applies; prices are required.
func fetchLive(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) ([]model.WeatherPoint, []model.SpotPricePoint, error) {
	wc := ingest.NewOpenMeteoClient(cfg.Weather.BaseURL, cfg.Weather.Latitude, cfg.Weather.Longitude, logger)
	wc.SetTimeout(cfg.Weather.Timeout)
	pc := ingest.NewEnergyChartsClient(cfg.Prices.BaseURL, cfg.Prices.BiddingZone, logger)
	pc.SetTimeout(cfg.Prices.Timeout)

	var (
		weather []model.WeatherPoint
		prices  []model.SpotPricePoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := wc.FetchWeather(gctx)
		if err != nil {
			logger.WithError(err).Warn("weather fetch failed")
			return nil
		}
		weather = w
		return nil
	})
	g.Go(func() error {
		p, err := pc.FetchPrices(gctx)
		if err != nil {
			return fmt.Errorf("fetching prices: %w", err)
		}
		prices = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return weather, prices, nil
}

func writeReport(w io.Writer, weather []model.WeatherPoint, prices []model.SpotPricePoint, selected model.ModelType, explain bool) error {
	reports := predictor.CompareModels(weather, prices)

	fmt.Fprintf(w, "Model: %s\n\n", selected)
	if explain {
		fmt.Fprintf(w, "%-17s  %7s  %9s  %9s  %1s  %8s  %8s  %8s  %8s\n",
			"Time (UTC)", "Temp", "Actual", "Predicted", "F", "Lag1", "Lag24", "HourMean", "Demand")
	} else {
		fmt.Fprintf(w, "%-17s  %7s  %9s  %9s  %1s\n", "Time (UTC)", "Temp", "Actual", "Predicted", "F")
	}
	for _, e := range predictor.GenerateWithFeatures(weather, prices, selected) {
		fmt.Fprintf(w, "%-17s  %7.1f  %9s  %9.2f  %1s",
			e.Timestamp.UTC().Format("2006-01-02 15:04"), e.Temperature, actualText(e.PricePoint), e.PredictedPrice, futureMark(e.IsFuture))
		if explain {
			fmt.Fprintf(w, "  %8.2f  %8.2f  %8.2f  %8.2f", e.Features.Lag1, e.Features.Lag24, e.Features.HourMean, e.Features.CenteredDemand)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n%-18s  %8s  %8s  %7s\n", "Model", "MAE", "RMSE", "R2")
	for _, r := range reports {
		fmt.Fprintf(w, "%-18s  %8.2f  %8.2f  %7.3f\n", r.Model, r.Metrics.MAE, r.Metrics.RMSE, r.Metrics.R2)
	}

	for _, r := range reports {
		if r.Model != selected {
			continue
		}
		if len(r.Folds) == 0 {
			fmt.Fprintln(w, "\nCross-validation: not enough history")
			break
		}
		fmt.Fprintf(w, "\n%4s  %5s  %4s  %8s  %8s\n", "Fold", "Train", "Test", "MAE", "RMSE")
		for _, f := range r.Folds {
			fmt.Fprintf(w, "%4d  %5d  %4d  %8.2f  %8.2f\n", f.Fold, f.TrainSize, f.TestSize, f.MAE, f.RMSE)
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

func writeCSV(w io.Writer, points []predictor.ExplainedPoint, explain bool) error {
	header := "timestamp,temperature,actual_price,predicted_price,is_future"
	if explain {
		header += ",lag1,lag24,hour_mean,centered_demand"
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, e := range points {
		actual := ""
		if e.HasActual() {
			actual = fmt.Sprintf("%.2f", *e.ActualPrice)
		}
		line := fmt.Sprintf("%s,%.1f,%s,%.2f,%t",
			e.Timestamp.UTC().Format(time.RFC3339), e.Temperature, actual, e.PredictedPrice, e.IsFuture)
		if explain {
			line += fmt.Sprintf(",%.4f,%.4f,%.4f,%.4f", e.Features.Lag1, e.Features.Lag24, e.Features.HourMean, e.Features.CenteredDemand)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func actualText(p model.PricePoint) string {
	if !p.HasActual() {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p.ActualPrice)
}

func futureMark(future bool) string {
	if future {
		return "*"
	}
	return ""
}
