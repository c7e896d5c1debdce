package handlers

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"pong-arena/game"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pingInterval   = 54 * time.Second
)

// Client is one websocket connection with its outbound queue. Writes go
// through the buffered send channel and a single write pump so the game loop
// never blocks on a slow socket.
type Client struct {
	ID   string
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// close signals the write pump to drain out. The send channel itself is
// never closed, so concurrent broadcasts can't hit a closed channel.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// Hub tracks connections and their session subscriptions, and implements
// game.Broadcaster for the engine. Sessions multicast to a topic keyed by
// session id; the matchmaker addresses single connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	topics  map[string]map[string]*Client // sessionID -> connID -> client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[string]*Client),
	}
}

// Register wraps a raw connection and starts its write pump.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	go client.writePump()
	return client
}

// Unregister drops the connection from the table and every topic, and closes
// its outbound queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	client, ok := h.clients[connID]
	delete(h.clients, connID)
	for topic, members := range h.topics {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	h.mu.Unlock()

	if ok {
		client.close()
	}
}

// Subscribe adds a connection to a session's multicast group.
func (h *Hub) Subscribe(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.topics[sessionID] == nil {
		h.topics[sessionID] = make(map[string]*Client)
	}
	h.topics[sessionID][connID] = client
}

// Unsubscribe removes a connection from a session's multicast group.
func (h *Hub) Unsubscribe(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.topics[sessionID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.topics, sessionID)
		}
	}
}

// ToConn sends an addressed event to a single connection.
func (h *Hub) ToConn(connID string, event game.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] failed to marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		client.enqueue(payload)
	}
}

// ToSession multicasts an event to every subscriber of a session topic.
func (h *Hub) ToSession(sessionID string, event game.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] failed to marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.topics[sessionID]))
	for _, client := range h.topics[sessionID] {
		members = append(members, client)
	}
	h.mu.RUnlock()

	for _, client := range members {
		client.enqueue(payload)
	}
}

// enqueue is non-blocking: a full buffer drops the frame rather than stall
// the broadcast tick. State ticks are redundant frame to frame, so a drop
// self-heals on the next one.
func (c *Client) enqueue(payload []byte) {
	select {
	case <-c.done:
	case c.send <- payload:
	default:
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
