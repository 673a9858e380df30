package ws

import (
	"github.com/sirupsen/logrus"

	"price_forecast/internal/model"
	"price_forecast/internal/pipeline"
)

// Bridge implements pipeline.Callback and broadcasts events to the WebSocket hub.
type Bridge struct {
	hub    *Hub
	logger logrus.FieldLogger
}

func NewBridge(hub *Hub, logger logrus.FieldLogger) *Bridge {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bridge{hub: hub, logger: logger}
}

func (b *Bridge) OnForecast(f model.Forecast) {
	msg, err := NewEnvelope(TypeForecastUpdate, ForecastFromModel(f))
	if err != nil {
		b.logger.WithError(err).Error("marshaling forecast")
		return
	}
	n := b.hub.Broadcast(msg)
	b.logger.WithFields(logrus.Fields{
		"seq":        f.Seq,
		"model":      f.Model,
		"dashboards": n,
	}).Debug("forecast pushed")
}

func (b *Bridge) OnWarning(w pipeline.Warning) {
	msg, err := NewEnvelope(TypePipelineWarning, WarningFromPipeline(w))
	if err != nil {
		b.logger.WithError(err).Error("marshaling warning")
		return
	}
	b.hub.Broadcast(msg)
}
