package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pinkypartner/pinkypartner/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	sendBufferSize = 32
)

// Message is a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string `json:"stream"`
	Event  string `json:"event"`
	Data   any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins permits cross-origin websocket upgrades from the listed origins.
// "*" allows any origin.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "" {
				continue
			}
			if origin == "*" {
				h.anyOrigin = true
				continue
			}
			h.origins[strings.ToLower(hostOf(origin))] = struct{}{}
		}
	}
}

// Hub fans out contract and notification events to connected users.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]map[*client]struct{} // stream -> user -> clients

	origins   map[string]struct{}
	anyOrigin bool
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		streams: make(map[string]map[string]map[*client]struct{}),
		origins: make(map[string]struct{}),
		log:     logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Serve upgrades the request and keeps the connection registered until it closes.
// Streams defaults to DefaultStreams when empty.
func (h *Hub) Serve(userID string, streams []string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	if len(streams) == 0 {
		streams = DefaultStreams
	}

	c := &client{
		hub:     h,
		socket:  socket,
		userID:  userID,
		streams: make(map[string]struct{}),
		send:    make(chan Message, sendBufferSize),
		done:    make(chan struct{}),
	}
	h.subscribe(c, streams)

	go c.writeLoop()
	c.readLoop()
}

// SendToUser delivers a message to every connection of userID subscribed to stream.
func (h *Hub) SendToUser(stream, userID string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" || userID == "" {
		return
	}
	message.Stream = stream

	h.mu.RLock()
	targets := make([]*client, 0, len(h.streams[stream][userID]))
	for c := range h.streams[stream][userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.deliver(message)
	}
}

// SendToUsers delivers a message to each user on stream.
func (h *Hub) SendToUsers(stream string, userIDs []string, message Message) {
	for _, userID := range userIDs {
		h.SendToUser(stream, userID, message)
	}
}

// Connections returns the number of live connections of a user across all streams.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*client]struct{})
	for _, users := range h.streams {
		for c := range users[userID] {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

// ActiveConnections returns the number of live connections across all users.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*client]struct{})
	for _, users := range h.streams {
		for _, clients := range users {
			for c := range clients {
				seen[c] = struct{}{}
			}
		}
	}
	return len(seen)
}

func (h *Hub) subscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		if !knownStream(stream) {
			h.log.Debug("ignoring unknown stream", zap.String("stream", stream), zap.String("user_id", c.userID))
			continue
		}
		users := h.streams[stream]
		if users == nil {
			users = make(map[string]map[*client]struct{})
			h.streams[stream] = users
		}
		if users[c.userID] == nil {
			users[c.userID] = make(map[*client]struct{})
		}
		users[c.userID][c] = struct{}{}
		c.streams[stream] = struct{}{}
	}
}

func (h *Hub) unsubscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		h.removeLocked(c, stream)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for stream := range c.streams {
		h.removeLocked(c, stream)
	}
}

func (h *Hub) removeLocked(c *client, stream string) {
	delete(c.streams, stream)

	users := h.streams[stream]
	if users == nil {
		return
	}
	delete(users[c.userID], c)
	if len(users[c.userID]) == 0 {
		delete(users, c.userID)
	}
	if len(users) == 0 {
		delete(h.streams, stream)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.anyOrigin {
		return true
	}
	host := strings.ToLower(hostOf(origin))
	if host == strings.ToLower(hostOf(r.Host)) || isLoopback(host) {
		return true
	}
	_, ok := h.origins[host]
	return ok
}

type client struct {
	hub     *Hub
	socket  *websocket.Conn
	userID  string
	streams map[string]struct{}
	send    chan Message
	done    chan struct{}
	once    sync.Once
}

// deliver never blocks; a client that cannot keep up is disconnected.
func (c *client) deliver(message Message) {
	select {
	case <-c.done:
	case c.send <- message:
	default:
		c.hub.log.Warn("dropping slow websocket client", zap.String("user_id", c.userID))
		go c.close()
	}
}

func (c *client) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket closed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "subscribe":
			c.hub.subscribe(c, ctrl.Streams)
		case "unsubscribe":
			c.hub.unsubscribe(c, ctrl.Streams)
		case "ping":
			c.deliver(Message{Event: "pong"})
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.socket.Close()
	})
}

func knownStream(stream string) bool {
	return stream == StreamNotifications || stream == StreamContracts
}

func hostOf(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "://") {
		if parsed, err := url.Parse(value); err == nil {
			value = parsed.Host
		}
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		return host
	}
	return value
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(streams []string) []string {
	seen := make(map[string]struct{}, len(streams))
	var out []string
	for _, stream := range streams {
		stream = normalizeStream(stream)
		if stream == "" {
			continue
		}
		if _, ok := seen[stream]; ok {
			continue
		}
		seen[stream] = struct{}{}
		out = append(out, stream)
	}
	return out
}
