package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/logging"
	"github.com/openskies-io/alpacahub/internal/registry"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Per-client send buffer; a client that falls this far behind is dropped
	sendBuffer = 64
)

// eventMessage is the JSON shape streamed to websocket subscribers.
type eventMessage struct {
	Type      string                  `json:"type"`
	DeviceID  string                  `json:"deviceId,omitempty"`
	Device    *registry.UnifiedDevice `json:"device,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Args      []interface{}           `json:"args,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// eventHub fans registry events out to websocket subscribers. The UI listens
// here instead of polling the registry.
type eventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan eventMessage
}

func newEventHub() *eventHub {
	return &eventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The gateway serves the UI itself; same-origin is the default
			// browser behavior and cross-origin pages have no business here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// attach subscribes the hub to a registry event bus.
func (h *eventHub) attach(bus *registry.Bus) {
	bus.AddListener(func(event registry.Event) {
		h.broadcast(eventMessage{
			Type:      string(event.Type),
			DeviceID:  event.DeviceID,
			Device:    event.Device,
			Message:   event.Message,
			Args:      event.Args,
			Timestamp: time.Now(),
		})
	})
}

// broadcast queues a message for every connected client. Clients that cannot
// keep up are disconnected rather than blocking the bus.
func (h *eventHub) broadcast(msg eventMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// handleWebsocket upgrades the connection and streams events until the peer
// goes away.
func (h *eventHub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	client := &wsClient{conn: conn, send: make(chan eventMessage, sendBuffer)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	logging.Debug("Event stream subscriber connected",
		zap.String("remote_addr", r.RemoteAddr),
	)

	go client.writePump()
	client.readPump(h)
}

// remove unregisters a client after its read loop ends.
func (h *eventHub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, registered := h.clients[client]; registered {
		delete(h.clients, client)
		close(client.send)
	}
}

// close disconnects all subscribers during shutdown.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		close(client.send)
		_ = client.conn.Close()
		delete(h.clients, client)
	}
}

// readPump discards inbound messages and keeps the pong deadline fresh.
func (c *wsClient) readPump(h *eventHub) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

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

// writePump serializes queued events and pings the peer.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, open := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
