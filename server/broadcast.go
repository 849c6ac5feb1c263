package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Clients only send control frames
	maxMessageSize = 512

	sendBuffer = 16
)

// Hub fans run events out to connected WebSocket clients.
// A client that cannot keep up is dropped rather than slowing the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.SugaredLogger
	drops   atomic.Int64
}

// NewHub creates an empty hub
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  log,
	}
}

// Client is one /ws/schedule connection
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan interface{}
}

func newClient(h *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{id: id, hub: h, conn: conn, send: make(chan interface{}, sendBuffer)}
}

// register adds c, refusing it when MaxClients are already connected
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if len(h.clients) >= MaxClients {
		h.mu.Unlock()
		h.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", c.id,
			"max_clients", MaxClients,
		)
		return false
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Infow("Client connected", "client_id", c.id, "total_clients", total)
	return true
}

// unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Infow("Client disconnected", "client_id", c.id, "total_clients", total)
}

// Broadcast queues msg for every client without blocking
func (h *Hub) Broadcast(msg interface{}) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.drops.Add(1)
		h.logger.Warnw("Client send channel full, removing client",
			"client_id", c.id,
			"total_drops", h.drops.Load(),
		)
		h.unregister(c)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
		c.conn.Close()
	}
}

// readPump discards client frames and notices disconnects
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debugw("WebSocket read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump is the only writer on conn
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
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logger.Debugw("Message write error", "client_id", c.id, "error", err)
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
