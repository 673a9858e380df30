package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// sendBuffer holds a few forecast updates; each carries the whole series.
	sendBuffer = 32

	// maxMissed consecutive dropped messages disconnect a dashboard.
	maxMissed = 8

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client is one connected dashboard.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	missed int
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// HubStats counts dashboard deliveries since the hub was created.
type HubStats struct {
	Clients   int   `json:"clients"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
	Evicted   int64 `json:"evicted"`
}

// Hub fans pipeline events out to the connected dashboards. A dashboard that
// keeps falling behind is disconnected; it picks up the current forecast
// again when it reconnects.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	stats   HubStats
	logger  logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{"client": c.id, "clients": n}).Debug("dashboard connected")
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

// Broadcast queues msg for every dashboard and returns how many accepted it.
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			c.missed = 0
			delivered++
			continue
		default:
		}

		c.missed++
		h.stats.Dropped++
		if c.missed < maxMissed {
			continue
		}
		if h.removeLocked(c) {
			h.stats.Evicted++
			h.logger.WithFields(logrus.Fields{
				"client": c.id,
				"missed": c.missed,
			}).Warn("dashboard too slow, disconnecting")
		}
	}
	h.stats.Delivered += int64(delivered)
	return delivered
}

// Send queues msg for one dashboard. It reports false when the dashboard is
// gone or its queue is full.
func (h *Hub) Send(c *Client, msg []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		h.stats.Delivered++
		return true
	default:
		h.stats.Dropped++
		return false
	}
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.Clients = len(h.clients)
	return s
}

// writePump drains the send queue and keeps the connection alive with pings.
// It closes the connection once the hub closes the queue.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
