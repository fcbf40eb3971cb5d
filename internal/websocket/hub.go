// Package websocket pushes change notifications to connected UIs.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	appLog "planningsprite/internal/log"
)

// Message is the envelope sent to clients.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Hub maintains the set of active clients and fans messages out to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu  sync.RWMutex
	now func() time.Time
}

// NewHub returns a hub; call Run in a goroutine before use.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Run is the hub's event loop. It returns after Close.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			appLog.Debug("websocket client connected", "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			appLog.Debug("websocket client disconnected", "total", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client; drop it rather than block everyone.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Notify encodes a change notification and queues it for every client.
// It never blocks; messages are dropped when the queue is full.
func (h *Hub) Notify(kind string, payload any) {
	data, err := json.Marshal(Message{Type: kind, Timestamp: h.now().UTC(), Payload: payload})
	if err != nil {
		appLog.Error("websocket encode failed", err, "type", kind)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		appLog.Warn("websocket broadcast queue full, dropping message", "type", kind)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one connection's outbound queue.
type Client struct {
	hub  *Hub
	send chan []byte
}

func newClient(h *Hub) *Client {
	return &Client{hub: h, send: make(chan []byte, 64)}
}
