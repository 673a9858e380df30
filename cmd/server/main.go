package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"price_forecast/internal/api"
	"price_forecast/internal/cache"
	"price_forecast/internal/config"
	"price_forecast/internal/ingest"
	"price_forecast/internal/logging"
	"price_forecast/internal/model"
	"price_forecast/internal/pipeline"
	"price_forecast/internal/store"
	"price_forecast/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ./configs or .)")
	frontendDir := flag.String("frontend-dir", "frontend/build", "directory containing frontend build")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	a := newApp(cfg, logger)
	defer a.close()

	// Serve frontend static files
	if _, err := os.Stat(*frontendDir); err == nil {
		logger.WithField("dir", *frontendDir).Info("serving frontend")
		a.router.NoRoute(gin.WrapH(http.FileServer(http.Dir(*frontendDir))))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.engine.Start()
	defer a.engine.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("server shutdown")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":     cfg.Server.Addr,
		"model":    a.engine.Model(),
		"interval": cfg.Refresh.Interval.String(),
		"zone":     cfg.Prices.BiddingZone,
	}).Info("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server failed")
	}
	stats := a.hub.Stats()
	logger.WithFields(logrus.Fields{
		"dashboards": stats.Clients,
		"delivered":  stats.Delivered,
		"dropped":    stats.Dropped,
		"evicted":    stats.Evicted,
	}).Info("server stopped")
}

type app struct {
	engine *pipeline.Engine
	store  *store.Store
	hub    *ws.Hub
	router *gin.Engine
	close  func()
}

// newApp wires fetchers, cache, pipeline and transport from cfg.
func newApp(cfg *config.Config, logger *logrus.Logger) *app {
	weather := ingest.NewOpenMeteoClient(cfg.Weather.BaseURL, cfg.Weather.Latitude, cfg.Weather.Longitude, logger)
	weather.SetTimeout(cfg.Weather.Timeout)
	prices := ingest.NewEnergyChartsClient(cfg.Prices.BaseURL, cfg.Prices.BiddingZone, logger)
	prices.SetTimeout(cfg.Prices.Timeout)

	feedCache, pinger, closeCache := buildCache(cfg.Redis, logger)

	dataStore := store.New(cfg.Server.HistoryLimit)
	hub := ws.NewHub(logger)
	bridge := ws.NewBridge(hub, logger)
	engine := pipeline.New(weather, prices, feedCache, dataStore, bridge, logger, pipeline.Options{
		Interval: cfg.Refresh.Interval,
		Timeout:  cfg.Refresh.Timeout,
		Model:    model.ModelType(cfg.DefaultModel),
	})

	handler := api.NewHandler(engine, dataStore, pinger, logger)
	router := api.NewRouter(handler, ws.NewHandler(hub, engine, logger))

	return &app{
		engine: engine,
		store:  dataStore,
		hub:    hub,
		router: router,
		close:  closeCache,
	}
}

// buildCache connects to Redis when enabled. An unreachable Redis is not
// fatal: the pipeline runs without a cache and the health check reports it.
func buildCache(cfg config.RedisConfig, logger logrus.FieldLogger) (cache.FeedCache, api.Pinger, func()) {
	if !cfg.Enabled {
		return cache.NoopCache{}, nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	rc := cache.NewRedisFeedCache(client, cfg.TTL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		logger.WithError(err).WithField("addr", cfg.Addr).Warn("redis unreachable, feed cache disabled")
		return cache.NoopCache{}, rc, func() { client.Close() }
	}

	logger.WithField("addr", cfg.Addr).Info("redis feed cache enabled")
	return rc, rc, func() { client.Close() }
}
