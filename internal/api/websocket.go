package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-script/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	clientQueueSize = 256
	wsBufferSize    = 1024
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

type wsRequest struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Payload struct {
		Channels []string `json:"channels"`
	} `json:"payload"`
}

// Origins are checked by the CORS middleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans state changes and fired events out to WebSocket clients
// according to each client's channel patterns.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	dropped atomic.Uint64
}

// NewHub creates a hub. Zero ping and pong settings default to 30 and 10
// seconds.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10
	}
	return &Hub{cfg: cfg, logger: logger, clients: make(map[*wsClient]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.shutdown()
		c.conn.Close()
	}
	clear(h.clients)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped counts frames discarded because a client's queue was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Broadcast sends payload on channel to every client whose patterns
// match it. Slow clients lose frames rather than block the caller.
func (h *Hub) Broadcast(channel string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	data, err := encodeFrame(WSMessage{Type: WSTypeEvent, Channel: channel, Payload: payload})
	if err != nil {
		h.logger.Error("websocket frame encoding failed", "channel", channel, "error", err)
		return
	}
	for c := range h.clients {
		if c.wants(channel) && !c.enqueue(data) {
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) attach(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "user", c.user, "clients", n)
}

func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("websocket client disconnected", "user", c.user, "clients", n)
}

func (h *Hub) pongWait() time.Duration {
	return time.Duration(h.cfg.PingInterval+h.cfg.PongTimeout) * time.Second
}

// handleWebSocket upgrades the connection. Authentication is by a
// single-use ticket from POST /auth/ws-ticket passed as ?ticket=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		fail(w, CodeUnauthenticated, "ticket query parameter is required")
		return
	}
	user, ok := s.tickets.redeem(ticket)
	if !ok {
		fail(w, CodeUnauthenticated, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		conn:     conn,
		user:     user,
		queue:    make(chan []byte, clientQueueSize),
		patterns: make(map[string]struct{}),
	}
	s.hub.attach(c)
	go s.hub.writeLoop(c)
	go s.hub.readLoop(c)
}

func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.detach(c)
		c.conn.Close()
	}()

	if h.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(h.cfg.MaxMessageSize))
	}
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(h.pongWait())) }
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "user", c.user, "error", err)
			}
			return
		}
		_ = extend("")
		c.handle(data)
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ping := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()
	writeWait := time.Duration(h.cfg.PongTimeout) * time.Second

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// wsClient is one connected WebSocket.
type wsClient struct {
	conn *websocket.Conn
	user string

	mu       sync.Mutex
	patterns map[string]struct{}
	queue    chan []byte
	closed   bool
}

func (c *wsClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.reply(req.ID, WSTypeResponse, map[string]any{"channels": c.subscribe(req.Payload.Channels, true)})
	case WSTypeUnsubscribe:
		c.reply(req.ID, WSTypeResponse, map[string]any{"channels": c.subscribe(req.Payload.Channels, false)})
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, map[string]string{"message": "unknown message type: " + req.Type})
	}
}

// subscribe adds or removes patterns and returns the resulting set,
// sorted.
func (c *wsClient) subscribe(channels []string, add bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if add {
			c.patterns[ch] = struct{}{}
		} else {
			delete(c.patterns, ch)
		}
	}
	out := make([]string, 0, len(c.patterns))
	for p := range c.patterns {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (c *wsClient) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.patterns {
		if channelMatch(p, channel) {
			return true
		}
	}
	return false
}

// enqueue reports false when the frame was dropped.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

func (c *wsClient) reply(id, msgType string, payload any) {
	if data, err := encodeFrame(WSMessage{Type: msgType, ID: id, Payload: payload}); err == nil {
		c.enqueue(data)
	}
}

func encodeFrame(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return json.Marshal(msg)
}

// channelMatch reports whether pattern selects channel: exactly, by "*",
// or by a "prefix.*" pattern.
func channelMatch(pattern, channel string) bool {
	if pattern == "*" || pattern == channel {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, "*")
	return ok && strings.HasSuffix(prefix, ".") && strings.HasPrefix(channel, prefix)
}
