package ws

import (
	"encoding/json"
	"sync"

	"noteserver/backend/internal/cache"
)

type Hub struct {
	presence cache.PresenceCache
	mu       sync.RWMutex
	// docID -> set of connections. Keyed by connection, not user: one user
	// can hold several tabs and each needs the broadcast.
	rooms map[string]map[*Conn]struct{}
}

func NewHub(p cache.PresenceCache) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{})}
}

func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// roomConns snapshots the room's connections so broadcasts never iterate the
// live map while Join/Leave mutate it.
func (h *Hub) roomConns(docID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Conn, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) BroadcastPresence(docID string, members []PresenceMember) {
	content, err := json.Marshal(members)
	if err != nil {
		return
	}
	msg := ServerMessage{Type: "presence", DocID: docID, Content: string(content)}
	msg.Members = members
	for _, c := range h.roomConns(docID) {
		c.SendMessage_Enqueue(msg)
	}
}

func (h *Hub) BroadcastCursor(docID string, userID uint64, rng interface{}) {
	msg := ServerMessage{Type: "cursor", DocID: docID, UserID: userID, Range: rng}
	for _, c := range h.roomConns(docID) {
		c.SendMessage_Enqueue(msg)
	}
}

// BroadcastRevision pushes a landed revision to every connection in the room
// except the submitter, which gets a rev_ack instead.
func (h *Hub) BroadcastRevision(docID string, exclude *Conn, msg RevPushMessage) {
	for _, c := range h.roomConns(docID) {
		if c == exclude {
			continue
		}
		c.SendMessage_Enqueue(msg)
	}
}
