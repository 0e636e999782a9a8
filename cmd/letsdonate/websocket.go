package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/akilamadhufin/lets-donate-mobile-app/internal/logging"
	syncpkg "github.com/akilamadhufin/lets-donate-mobile-app/internal/sync"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingPeriod   = 30 * time.Second
)

// EventConnectivity is pushed whenever the server becomes reachable or
// unreachable. Sync events reuse the engine's event type names.
const EventConnectivity = "connectivity"

// WSClient is one connected UI.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	mu            sync.Mutex
	subscriptions map[string]bool
}

// WSHub keeps the connected clients and fans events out to them.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan WSEnvelope
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex

	upgrader websocket.Upgrader
}

// WSEnvelope wraps every message sent to a client.
type WSEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewWSHub starts a hub that accepts connections from allowedOrigins, or
// from localhost only when the list is empty.
func NewWSHub(allowedOrigins []string) *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan WSEnvelope, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
	hub.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	go hub.run()
	return hub
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	if len(allowed) > 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client connected", map[string]interface{}{"client": client.id, "total": total})

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("WebSocket client disconnected", map[string]interface{}{"client": client.id, "total": total})

		case env := <-h.broadcast:
			msg, err := json.Marshal(env)
			if err != nil {
				logging.Error("Failed to marshal WebSocket message", err, map[string]interface{}{"type": env.Type})
				continue
			}
			h.mu.Lock()
			for _, client := range h.clients {
				if !client.wants(env.Type) {
					continue
				}
				select {
				case client.send <- msg:
				default:
					// Slow reader; its writePump exits on the closed channel.
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop must be called with h.mu held.
func (h *WSHub) drop(client *WSClient) {
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
}

// Close disconnects every client and stops the hub.
func (h *WSHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every interested client.
func (h *WSHub) Broadcast(eventType string, data interface{}) {
	env := WSEnvelope{Type: eventType, Data: data, Timestamp: time.Now().UnixMilli()}
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}

// PublishSyncEvent forwards an engine event. It is the engine subscriber.
func (h *WSHub) PublishSyncEvent(ev syncpkg.Event) {
	env := WSEnvelope{Type: string(ev.Type), Timestamp: ev.Time.UnixMilli()}
	switch {
	case ev.Result != nil:
		env.Data = ev.Result
	case ev.Message != "":
		env.Data = map[string]string{"message": ev.Message}
	}
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}

// PublishConnectivity forwards an online/offline transition.
func (h *WSHub) PublishConnectivity(online bool) {
	h.Broadcast(EventConnectivity, map[string]bool{"online": online})
}

// HandleWebSocket upgrades the request and registers the client.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := &WSClient{
		id:            uuid.New().String(),
		conn:          conn,
		send:          make(chan []byte, 256),
		hub:           h,
		subscriptions: make(map[string]bool),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// wants reports whether the client should get eventType. A client with no
// subscriptions gets everything.
func (c *WSClient) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

type clientMessage struct {
	Action string   `json:"action"`
	Events []string `json:"events"`
}

func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("WebSocket read error", map[string]interface{}{"client": c.id, "error": err.Error()})
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logging.Debug("Ignoring malformed WebSocket message", map[string]interface{}{"client": c.id})
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(WSEnvelope{Type: "subscribe_ack", Data: msg.Events})
		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()
		case "ping":
			c.reply(WSEnvelope{Type: "pong"})
		}
	}
}

// reply sends directly to this client. The hub may have dropped the client
// already, so a closed send channel is tolerated.
func (c *WSClient) reply(env WSEnvelope) {
	env.Timestamp = time.Now().UnixMilli()
	msg, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
