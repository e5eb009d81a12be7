// Package stream pushes sealed decisions to WebSocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"BetPulse/internal/domain/models"
	domsvc "BetPulse/internal/domain/service"
	applogger "BetPulse/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// Message is the frame written to subscribers.
type Message struct {
	Type      string                 `json:"type"`
	FixtureID string                 `json:"fixture_id"`
	Data      *models.DecisionRecord `json:"data"`
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	fixture string
}

type frame struct {
	fixture string
	body    []byte
}

// Hub fans decisions out to connected clients. A client that cannot keep
// up is dropped rather than allowed to stall the others.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan frame
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu    sync.RWMutex
	count int

	pingInterval time.Duration
	sendBuffer   int
	upgrader     websocket.Upgrader
	l            *applogger.Logger
}

func NewHub(pingInterval time.Duration, sendBuffer int, l *applogger.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Hub{
		clients:      make(map[*client]struct{}),
		broadcast:    make(chan frame, 256),
		register:     make(chan *client),
		unregister:   make(chan *client),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		sendBuffer:   sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		l: l,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			h.l.Debug("stream client registered", applogger.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case f := <-h.broadcast:
			for c := range h.clients {
				if c.fixture != "" && c.fixture != f.fixture {
					continue
				}
				select {
				case c.send <- f.body:
				default:
					h.l.Warn("stream client too slow, dropping", applogger.String("fixture_filter", c.fixture))
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Clients reports the number of registered subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast queues rec for delivery. It never blocks the caller; when the
// queue is full the frame is dropped.
func (h *Hub) Broadcast(rec *models.DecisionRecord) {
	body, err := json.Marshal(Message{Type: "decision", FixtureID: rec.FixtureID, Data: rec})
	if err != nil {
		h.l.Error("stream encode failed", applogger.String("fixture_id", rec.FixtureID), applogger.Error(err))
		return
	}
	select {
	case h.broadcast <- frame{fixture: rec.FixtureID, body: body}:
	default:
		h.l.Warn("stream queue full, frame dropped", applogger.String("fixture_id", rec.FixtureID))
	}
}

// ServeWS upgrades the request. The optional fixture_id query parameter
// restricts the feed to one fixture.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, h.sendBuffer), fixture: r.URL.Query().Get("fixture_id")}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return nil
	}
	go c.writePump(h.pingInterval)
	go c.readPump()
	return nil
}

// readPump only drains control frames; subscribers do not send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	pongWait := c.hub.pingInterval * 2
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ domsvc.Broadcaster = (*Hub)(nil)
