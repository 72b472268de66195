package handlers

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pixelgrove/holospace/holospace-backend/lobby"
)

// Connection represents a WebSocket connection and the user it belongs to.
type Connection struct {
	ws       *websocket.Conn
	send     chan []byte
	userID   string
	username string

	sendMu sync.Mutex
	closed bool
	// superseded is set (under the hub lock) when the same user opens a
	// newer connection; the old read loop must then skip the implicit leave.
	superseded bool
}

// trySend enqueues a frame without blocking. Returns false if the buffer is
// full or the connection is already shut down.
func (c *Connection) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel and the socket. Idempotent. The closed
// channel stops the write pump, the closed socket wakes the read pump.
func (c *Connection) shutdown() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.sendMu.Unlock()
	c.ws.Close()
}

func (c *Connection) writePump() {
	defer c.ws.Close()

	for message := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("error writing message to user %s: %v", c.userID, err)
			break
		}
	}
}

// Hub maintains the set of active connections keyed by user id and delivers
// coordinator events to them. It implements lobby.Notifier: enqueueing onto
// a connection's buffered send channel never blocks, and the channel
// preserves per-recipient ordering, so a joiner's snapshot always reaches it
// ahead of later chat events.
type Hub struct {
	mu          sync.Mutex
	connections map[string]*Connection
}

func NewHub() *Hub {
	return &Hub{connections: make(map[string]*Connection)}
}

// add registers a connection, displacing any previous connection the same
// user still had. The displaced connection is returned so the caller can
// shut it down outside the lock.
func (h *Hub) add(c *Connection) *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()

	old := h.connections[c.userID]
	if old != nil {
		old.superseded = true
	}
	h.connections[c.userID] = c
	return old
}

func (h *Hub) remove(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[c.userID] == c {
		delete(h.connections, c.userID)
	}
}

func (h *Hub) wasSuperseded(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.superseded
}

// Notify implements lobby.Notifier. Events for clients without a live
// connection are dropped; such clients resynchronize from a fresh snapshot
// when they reconnect and rejoin.
func (h *Hub) Notify(clientID string, event lobby.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.Lock()
	c := h.connections[clientID]
	h.mu.Unlock()
	if c == nil {
		return
	}
	h.deliver(c, payload)
}

// Broadcast implements lobby.Notifier, fanning an event out to every
// connected client.
func (h *Hub) Broadcast(event lobby.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.deliver(c, payload)
	}
}

// deliver hands a frame to the connection's write pump. A client that
// cannot drain its buffer is cut off; its read loop then runs the normal
// disconnect path.
func (h *Hub) deliver(c *Connection, payload []byte) {
	if !c.trySend(payload) {
		log.Printf("send buffer full for user %s, dropping connection", c.userID)
		h.remove(c)
		c.shutdown()
	}
}
