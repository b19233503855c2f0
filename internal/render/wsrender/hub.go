// Package wsrender is the websocket rendering adapter: a hub that fans
// propagation events out to connected editor clients. Tier 1 only hands the
// event to a buffered channel; the broadcast loop and every socket write run
// on their own goroutines, keeping the settle pass latency-bound.
package wsrender

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The editor UI is served from its own origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub broadcasts propagation events to all connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	events  chan event.Propagation
	done    chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan event.Propagation
}

// NewHub creates a hub. Run must be called before events flow.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		events:  make(chan event.Propagation, 256),
		done:    make(chan struct{}),
	}
}

// OnPropagation implements render.Subscriber. Events are dropped rather than
// blocking the settle pass when the hub's buffer is full.
func (h *Hub) OnPropagation(ev event.Propagation) {
	select {
	case h.events <- ev:
	case <-h.done:
	default:
	}
}

// Run pumps events to clients until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Websocket render hub started.")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			logger.Debug("Websocket render hub stopped.")
			return
		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed.", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan event.Propagation, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Debug("Render client connected.", "remote_addr", conn.RemoteAddr().String())

	go h.writeLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.conn.Close()
	}()

	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (h *Hub) broadcast(ev event.Propagation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Slow client: drop the event instead of stalling the hub.
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
