package broadcast

import (
	"log"
	"sync"
)

// Conn is one subscribed client connection. Send must not block: it returns
// false when the connection cannot accept the message (slow consumer), in
// which case the hub drops it from all rooms.
type Conn interface {
	Send(msg []byte) bool
	Close()
}

// Hub tracks live connections and their room membership. Every connection
// receives global events; a connection receives room events only for rooms
// it explicitly joined. Disconnecting removes a connection from all rooms
// immediately.
type Hub struct {
	mu    sync.RWMutex
	conns map[Conn]struct{}
	rooms map[string]map[Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[Conn]struct{}),
		rooms: make(map[string]map[Conn]struct{}),
	}
}

// Register adds a connection to the global listener set.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	log.Printf("[Hub] Register: connections=%d", total)
}

// Unregister removes a connection and its room memberships. A connection
// the hub no longer tracks is left alone: the slow-consumer drop and the
// connection's own disconnect path can both arrive here, and only the first
// may close the connection.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	total := len(h.conns)
	h.mu.Unlock()

	c.Close()
	log.Printf("[Hub] Unregister: connections=%d", total)
}

// Join subscribes a registered connection to a thread room.
func (h *Hub) Join(c Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	log.Printf("[Hub] Join: room=%s members=%d", room, len(members))
}

// Leave removes a connection from a thread room.
func (h *Hub) Leave(c Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	log.Printf("[Hub] Leave: room=%s members=%d", room, len(members))
}

// Broadcast delivers a message to every registered connection.
func (h *Hub) Broadcast(msg []byte) {
	h.deliver(h.snapshotAll(), msg)
}

// BroadcastRoom delivers a message to the members of one room.
func (h *Hub) BroadcastRoom(room string, msg []byte) {
	h.deliver(h.snapshotRoom(room), msg)
}

// ConnCount returns the number of registered connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// RoomSize returns the number of members in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) snapshotAll() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	return targets
}

func (h *Hub) snapshotRoom(room string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[room]
	targets := make([]Conn, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	return targets
}

// deliver sends outside the lock so a slow socket never stalls the hub.
// Connections that refuse the message are dropped.
func (h *Hub) deliver(targets []Conn, msg []byte) {
	for _, c := range targets {
		if !c.Send(msg) {
			log.Printf("[Hub] Dropping slow connection")
			h.Unregister(c)
		}
	}
}
