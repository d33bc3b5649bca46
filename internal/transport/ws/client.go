package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"commentflow/internal/broadcast"
)

const (
	// writeWait is the deadline for a single write to the peer
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before dropping the peer
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound control messages
	maxMessageSize = 512

	// sendBuffer is the per-connection outbound queue; a full buffer marks
	// the connection as a slow consumer and the hub drops it
	sendBuffer = 32
)

// Client subscriber actions
const (
	ActionJoinThread  = "join:thread"
	ActionLeaveThread = "leave:thread"
)

// controlMessage is the only inbound frame clients send: room management.
type controlMessage struct {
	Action   string `json:"action"`
	ThreadID string `json:"thread_id"`
}

// Client is one websocket subscriber. It implements broadcast.Conn.
type Client struct {
	hub    *broadcast.Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string // empty for anonymous connections

	// mu guards closed. The hub closes a slow consumer from its own
	// goroutine while the read pump's deferred Unregister may close
	// concurrently; both paths must agree on who closes the send channel.
	mu     sync.Mutex
	closed bool
}

func newClient(hub *broadcast.Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
}

// Send queues a message for delivery. Returns false when the outbound
// buffer is full so the hub can drop the connection instead of blocking,
// and false after Close so a broadcast racing a disconnect cannot send on
// the closed channel.
func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue, which ends the write pump. Safe to call
// more than once: the hub's slow-consumer drop and the read pump's exit can
// both reach here.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump consumes join/leave control messages until the peer disconnects.
// Unregistering on exit removes the client from every room immediately.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[WS] Ignoring malformed control message: %v", err)
			continue
		}
		if msg.ThreadID == "" {
			continue
		}

		switch msg.Action {
		case ActionJoinThread:
			c.hub.Join(c, msg.ThreadID)
		case ActionLeaveThread:
			c.hub.Leave(c, msg.ThreadID)
		default:
			log.Printf("[WS] Unknown action=%q", msg.Action)
		}
	}
}

// writePump moves queued events to the socket and keeps the peer alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
