// internal/handler/ws_hub.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/events"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

type WSResponse struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

type Client struct {
	Reference string
	Conn      *websocket.Conn
	Send      chan []byte
	hub       *Hub
}

// Hub pushes receipt events to the websocket clients watching that receipt.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewHub accepts upgrades from allowedOrigins; "*" accepts any origin.
// Requests without an Origin header are always accepted.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger:  logger,
		clients: make(map[string]map[*Client]struct{}),
	}
}

var _ events.Publisher = (*Hub)(nil)

// Publish delivers ev to the subscribers of its receipt. Slow clients are
// dropped rather than blocking the caller.
func (h *Hub) Publish(_ context.Context, ev events.ReceiptEvent) error {
	msg, err := json.Marshal(WSResponse{
		Type:      string(ev.Type),
		Data:      ev,
		Timestamp: ev.OccurredAt.Unix(),
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.Reference] {
		select {
		case c.Send <- msg:
		default:
			h.logger.Warn("websocket client too slow, dropping", zap.String("reference", c.Reference))
			h.removeLocked(c)
		}
	}
	return nil
}

// Subscribers reports how many clients watch reference.
func (h *Hub) Subscribers(reference string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[reference])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.Reference]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.Reference] = set
	}
	set[c] = struct{}{}
	h.logger.Debug("websocket client connected", zap.String("reference", c.Reference))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.Reference]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		delete(h.clients, c.Reference)
	}
	h.logger.Debug("websocket client disconnected", zap.String("reference", c.Reference))
}

// serve upgrades the request and runs the client until it disconnects.
// first is queued before any published event.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, reference string, first WSResponse) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("reference", reference), zap.Error(err))
		return
	}

	c := &Client{
		Reference: reference,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		hub:       h,
	}
	if msg, err := json.Marshal(first); err == nil {
		c.Send <- msg
	}
	h.register(c)

	go c.writePump()
	c.readPump()
}

// readPump only tracks liveness; clients have nothing to say.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.String("reference", c.Reference), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
