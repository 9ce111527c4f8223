package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/pilot"
	"github.com/ayusman/tellopilot/internal/server/api"
)

const (
	// clientBuffer is the number of status messages queued per client.
	clientBuffer = 8
	writeTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// client is one websocket subscriber with its own send queue.
type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// StatusHub broadcasts pilot status to websocket clients and accepts
// operator events from them, e.g. {"kind":"press","key":"w"}.
type StatusHub struct {
	pilot  Pilot
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewStatusHub creates a hub that submits incoming events to p.
func NewStatusHub(p Pilot, logger *zap.SugaredLogger) *StatusHub {
	return &StatusHub{
		pilot:   p,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StatusHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}

	go h.writer(c)
	h.reader(c)

	h.remove(c)
	conn.Close()
}

// Clients returns the number of connected clients.
func (h *StatusHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Observe sends s to every client. Slow clients miss messages rather than
// stall the caller.
func (h *StatusHub) Observe(s pilot.Status) {
	msg, err := json.Marshal(s)
	if err != nil {
		h.logger.Warnw("failed to marshal status", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Close disconnects all clients and rejects new ones.
func (h *StatusHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *StatusHub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *StatusHub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// reader submits client events until the connection fails.
func (h *StatusHub) reader(c *client) {
	for {
		var req api.EventRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				continue
			}
			return
		}

		ev, err := api.ParseEvent(req, control.SourceWeb)
		if err != nil {
			h.logger.Debugw("rejected websocket event", "error", err)
			continue
		}
		if !h.pilot.Submit(ev) {
			h.logger.Warnw("event queue full, dropped websocket event", "kind", ev.Kind.String())
		}
	}
}

// writer drains c.send until it is closed.
func (h *StatusHub) writer(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}
