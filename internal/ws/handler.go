package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"price_forecast/internal/model"
	"price_forecast/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the part of the pipeline the dashboard drives.
type Controller interface {
	Forecast() (model.Forecast, bool)
	Model() model.ModelType
	SetModel(m model.ModelType) (model.Forecast, error)
	Refresh(ctx context.Context) (model.Forecast, error)
}

// Handler manages WebSocket connections and routes messages to the pipeline.
type Handler struct {
	hub    *Hub
	engine Controller
	logger logrus.FieldLogger
}

func NewHandler(hub *Hub, engine Controller, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{hub: hub, engine: engine, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn)

	h.hub.Register(client)
	go client.writePump()

	h.sendModels(client)

	// A fresh client gets the current forecast without waiting for the next refresh.
	h.sendForecast(client)

	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Warn("websocket read failed")
			}
			return
		}

		h.handleMessage(msg)
	}
}

func (h *Handler) handleMessage(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		h.logger.WithError(err).Warn("invalid message")
		return
	}

	switch env.Type {
	case TypeModelSet:
		var p SetModelPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.logger.WithError(err).Warn("invalid model:set payload")
			return
		}
		if !model.Known(p.Model) {
			h.logger.WithField("model", p.Model).Warn("unknown model, using default")
		}
		// The engine publishes the recomputed forecast through the bridge.
		if _, err := h.engine.SetModel(model.ParseModelType(p.Model)); err != nil && !errors.Is(err, pipeline.ErrNoData) {
			h.logger.WithError(err).Error("model change failed")
		}
		h.broadcastModels()

	case TypeForecastRefresh:
		go func() {
			if _, err := h.engine.Refresh(context.Background()); err != nil {
				h.logger.WithError(err).Error("requested refresh failed")
			}
		}()

	default:
		h.logger.WithField("type", env.Type).Warn("unknown message type")
	}
}

func (h *Handler) broadcastModels() {
	msg, err := NewEnvelope(TypeModels, ModelsFor(h.engine.Model()))
	if err != nil {
		h.logger.WithError(err).Error("creating models:list message")
		return
	}
	h.hub.Broadcast(msg)
}

func (h *Handler) sendModels(c *Client) {
	msg, err := NewEnvelope(TypeModels, ModelsFor(h.engine.Model()))
	if err != nil {
		return
	}
	h.hub.Send(c, msg)
}

func (h *Handler) sendForecast(c *Client) {
	f, ok := h.engine.Forecast()
	if !ok {
		return
	}
	msg, err := NewEnvelope(TypeForecastUpdate, ForecastFromModel(f))
	if err != nil {
		h.logger.WithError(err).Error("creating forecast:update message")
		return
	}
	h.hub.Send(c, msg)
}
