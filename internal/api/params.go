package api

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"price_forecast/internal/predictor"
)

func parseFloatParam(c *gin.Context, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("%s parameter is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	return v, nil
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	var from, to time.Time
	if fromRaw != "" {
		t, ok := predictor.ParseTimestamp(fromRaw)
		if !ok {
			return from, to, fmt.Errorf("invalid from %q", fromRaw)
		}
		from = t
	}
	if toRaw != "" {
		t, ok := predictor.ParseTimestamp(toRaw)
		if !ok {
			return from, to, fmt.Errorf("invalid to %q", toRaw)
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return from, to, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}
