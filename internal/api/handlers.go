package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"price_forecast/internal/model"
	"price_forecast/internal/pipeline"
	"price_forecast/internal/predictor"
	"price_forecast/internal/store"
	"price_forecast/internal/ws"
)

// Engine is the pipeline surface the API needs.
type Engine interface {
	Forecast() (model.Forecast, bool)
	Model() model.ModelType
	SetModel(m model.ModelType) (model.Forecast, error)
	Refresh(ctx context.Context) (model.Forecast, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	engine Engine
	store  *store.Store
	redis  Pinger
	logger logrus.FieldLogger
}

// NewHandler wires the handlers. redis may be nil when the cache is disabled.
func NewHandler(engine Engine, s *store.Store, redis Pinger, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{engine: engine, store: s, redis: redis, logger: logger}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

type HistoryEntry struct {
	Seq           uint64            `json:"seq"`
	RunID         string            `json:"run_id"`
	Model         string            `json:"model"`
	GeneratedAt   string            `json:"generated_at"`
	Points        int               `json:"points"`
	Metrics       ws.MetricsPayload `json:"metrics"`
	NextHour      *decimal.Decimal  `json:"next_hour,omitempty"`
	WeatherSource string            `json:"weather_source"`
	PriceSource   string            `json:"price_source"`
	Warnings      []string          `json:"warnings,omitempty"`
}

type HorizonResponse struct {
	Price       decimal.Decimal `json:"price"`
	Temperature decimal.Decimal `json:"temperature"`
	Predicted   decimal.Decimal `json:"predicted"`
}

func (h *Handler) Health(c *gin.Context) {
	services := map[string]string{"forecast": "pending"}
	if _, ok := h.engine.Forecast(); ok {
		services["forecast"] = "ready"
	}

	services["redis"] = "disabled"
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	}

	status := "healthy"
	if services["forecast"] != "ready" {
		status = "starting"
	}
	if services["redis"] != "healthy" && services["redis"] != "disabled" {
		// The pipeline still works without its cache.
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  services,
	})
}

// GetForecast returns the latest forecast. With ?model= the last snapshot is
// scored under that model without changing the selection. ?from= and ?to=
// (RFC3339) restrict the points to [from, to).
func (h *Handler) GetForecast(c *gin.Context) {
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, ok := h.store.LatestInRange(from, to)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no forecast yet"})
		return
	}

	if name := c.Query("model"); name != "" {
		if !model.Known(name) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model", "models": ws.ModelsFor(f.Model).Models})
			return
		}
		if m := model.ModelType(name); m != f.Model {
			snap, ok := h.store.Snapshot()
			if !ok {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no feed snapshot yet"})
				return
			}
			report := predictor.Score(snap.Weather, snap.Prices, m)
			f.Model = m
			f.Points = store.PointsInRange(report.Points, from, to)
			f.Metrics = report.Metrics
			f.Folds = report.Folds
		}
	}

	c.JSON(http.StatusOK, ws.ForecastFromModel(f))
}

func (h *Handler) GetModels(c *gin.Context) {
	c.JSON(http.StatusOK, ws.ModelsFor(h.engine.Model()))
}

func (h *Handler) SetModel(c *gin.Context) {
	var req ws.SetModelPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !model.Known(req.Model) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model"})
		return
	}

	f, err := h.engine.SetModel(model.ModelType(req.Model))
	if errors.Is(err, pipeline.ErrNoData) {
		c.JSON(http.StatusAccepted, ws.ModelsFor(h.engine.Model()))
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("model change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "model change failed"})
		return
	}
	c.JSON(http.StatusOK, ws.ForecastFromModel(f))
}

func (h *Handler) GetMetrics(c *gin.Context) {
	f, ok := h.engine.Forecast()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no forecast yet"})
		return
	}

	p := ws.ForecastFromModel(f)
	c.JSON(http.StatusOK, gin.H{
		"model":   p.Model,
		"metrics": p.Metrics,
		"folds":   p.Folds,
		"models":  p.AllMetrics,
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	f, err := h.engine.Refresh(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("manual refresh failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ws.ForecastFromModel(f))
}

// GetHistory lists stored forecasts, newest first. ?limit= caps the count.
func (h *Handler) GetHistory(c *gin.Context) {
	history := h.store.History()

	limit := len(history)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, limit)
	}

	entries := make([]HistoryEntry, 0, limit)
	for i := len(history) - 1; i >= 0 && len(entries) < limit; i-- {
		f := history[i]
		p := ws.ForecastFromModel(f)
		entries = append(entries, HistoryEntry{
			Seq:           f.Seq,
			RunID:         f.RunID,
			Model:         p.Model,
			GeneratedAt:   p.GeneratedAt,
			Points:        len(f.Points),
			Metrics:       p.Metrics,
			NextHour:      p.NextHour,
			WeatherSource: p.WeatherSource,
			PriceSource:   p.PriceSource,
			Warnings:      f.Warnings,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "total": len(history)})
}

func (h *Handler) GetHorizon(c *gin.Context) {
	price, err := parseFloatParam(c, "price")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	temp, err := parseFloatParam(c, "temp")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, HorizonResponse{
		Price:       decimal.NewFromFloat(price),
		Temperature: decimal.NewFromFloat(temp),
		Predicted:   decimal.NewFromFloat(predictor.PredictHorizon(price, temp)).Round(2),
	})
}
