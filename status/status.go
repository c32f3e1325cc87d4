// Package status broadcasts import progress to websocket clients.
package status

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mogaika/sceneimport/logger"
)

type Kind int

const (
	KindInfo Kind = iota
	KindError
	KindProgress
)

type Event struct {
	Message  string    `json:"message"`
	Path     string    `json:"path,omitempty"`
	Time     time.Time `json:"time"`
	Kind     Kind      `json:"kind"`
	Progress float32   `json:"progress"`
}

const (
	clientBuffer = 32
	pingPeriod   = 30 * time.Second
	writeTimeout = 40 * time.Second
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Named("status").Debug("ws write msg error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Named("status").Debug("ws write ping error", zap.Error(err))
				return
			}
		}
	}
}

// readPump drains control frames so close and pong are handled.
func (c *client) readPump() {
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			c.hub.unregister(c)
			return
		}
	}
}

// Hub fans events out to every connected client. New clients get the last
// event first.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]bool
	last     []byte
	events   chan *Event
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	h := &Hub{
		clients: make(map[*client]bool),
		events:  make(chan *Event, 16),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for e := range h.events {
		data, err := json.Marshal(e)
		if err != nil {
			logger.Named("status").Error("failed to marshal event", zap.Error(err))
			continue
		}
		h.mu.Lock()
		h.last = data
		for c := range h.clients {
			select {
			case c.send <- data:
			default:
				// slow client misses the event
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Attach starts streaming events to conn until it fails or closes.
func (h *Hub) Attach(conn *websocket.Conn) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	go c.writePump()
	go c.readPump()
}

// ServeHTTP upgrades the request to a websocket subscribed to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Named("status").Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Attach(conn)
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Publish(e Event) {
	if math.IsNaN(float64(e.Progress)) || math.IsInf(float64(e.Progress), 0) {
		e.Progress = 0
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.events <- &e
}

var Default = NewHub()

func (h *Hub) Info(path string, format string, a ...interface{}) {
	h.Publish(Event{Message: fmt.Sprintf(format, a...), Path: path, Kind: KindInfo})
}

func (h *Hub) Error(path string, format string, a ...interface{}) {
	h.Publish(Event{Message: fmt.Sprintf(format, a...), Path: path, Kind: KindError})
}

func (h *Hub) Progress(path string, progress float32, format string, a ...interface{}) {
	h.Publish(Event{Message: fmt.Sprintf(format, a...), Path: path, Kind: KindProgress, Progress: progress})
}
