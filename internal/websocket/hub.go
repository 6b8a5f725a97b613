// Package websocket pushes observation lifecycle events to connected
// dashboard clients.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. The feed is one-way; clients
	// only send control frames.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from arbitrary origins during field
		// deployments; the JWT check on the route gates access.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active feed clients and broadcasts events to
// them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound events queued for fan-out.
	broadcast chan Event

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new event hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan Event, 256),
		logger:    logger,
	}
}

// Run starts the hub's fan-out loop.
func (h *Hub) Run() {
	for event := range h.broadcast {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to encode event", zap.Error(err))
			continue
		}

		h.mu.RLock()
		for client := range h.clients {
			select {
			case client.send <- payload:
			default:
				// Slow consumer; drop the event rather than stall the
				// feed.
				h.logger.Warn("Dropping event for slow client")
			}
		}
		h.mu.RUnlock()
	}
}

// Broadcast queues an event for delivery to every connected client. It
// never blocks the ingestion path: when the queue is full the event is
// dropped.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Event queue full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("fileID", event.FileID))
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.logger.Info("Feed client connected", zap.String("subject", client.subject))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	h.logger.Info("Feed client disconnected", zap.String("subject", client.subject))
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Authenticated subject for this client.
	subject string

	logger *zap.Logger
}

// HandleFeed upgrades the request and attaches the client to the hub. The
// caller has already authenticated the subject.
func HandleFeed(hub *Hub, c echo.Context, subject string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		subject: subject,
		logger:  logger,
	}

	client.hub.registerClient(client)

	// Allow collection of memory referenced by the caller by doing all work
	// in new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump drains the connection so control frames are processed; the feed
// accepts no client messages.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
	}
}

// writePump pumps events from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error("Failed to write event", zap.Error(err))
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
