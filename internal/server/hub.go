package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event is one server-sent notification to connected editor frontends.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Hub manages Server-Sent Events connections so every connected frontend
// sees graph changes and cycle progress as they happen.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

// Client is a single SSE connection. Broadcasts and keep-alive pings arrive
// from different goroutines, so every frame write goes through writeMu.
type Client struct {
	hub     *Hub
	writeMu sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client and releases its connection.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.done)
	}
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	for client := range h.clients {
		select {
		case <-client.done:
		default:
			client.send(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient wraps an HTTP response writer as an SSE client.
func NewClient(hub *Hub, w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &Client{
		hub:     hub,
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}, nil
}

func (c *Client) send(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	fmt.Fprintf(c.writer, "data: %s\n\n", data)
	c.flusher.Flush()
}

// ping writes an SSE comment frame to keep proxies from closing the
// connection.
func (c *Client) ping() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	fmt.Fprintf(c.writer, ": ping\n\n")
	c.flusher.Flush()
}

// KeepAlive sends periodic comment pings until the client disconnects.
func (c *Client) KeepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			select {
			case <-c.done:
				return
			default:
				c.ping()
			}
		}
	}
}
