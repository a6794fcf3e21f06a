package realtime

import (
	"fmt"
	"sync"
)

// RoomID returns the canonical pair-room identifier for two users.
// Symmetric: RoomID(a, b) == RoomID(b, a).
func RoomID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("chat_%d_%d", a, b)
}

// Hub tracks which sessions are in which pair-room and fans payloads out
// to every member. Membership is ephemeral: created on connect, dropped on
// disconnect, no identity beyond the live connection.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]*Session // roomID -> sessionID -> session
	sessionRoom map[string]string              // sessionID -> roomID
}

func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[string]*Session),
		sessionRoom: make(map[string]string),
	}
}

// Join adds the session to the room and starts its write loop.
func (h *Hub) Join(roomID string, s *Session) {
	h.mu.Lock()
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[string]*Session)
		h.rooms[roomID] = room
	}
	room[s.ID] = s
	h.sessionRoom[s.ID] = roomID
	h.mu.Unlock()

	s.Start()
}

// Leave removes the session from its room. Leaving twice, or leaving a
// session that never joined, is a no-op.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	roomID, ok := h.sessionRoom[s.ID]
	if ok {
		delete(h.sessionRoom, s.ID)
		if room := h.rooms[roomID]; room != nil {
			delete(room, s.ID)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()
}

// Broadcast delivers payload to every session currently in the room,
// including the sender's own other tabs. Fire-and-forget: send errors
// affect only the failing session and are not reported to the caller.
func (h *Hub) Broadcast(roomID string, payload []byte) int {
	h.mu.RLock()
	room := h.rooms[roomID]
	members := make([]*Session, 0, len(room))
	for _, s := range room {
		members = append(members, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range members {
		if err := s.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Close terminates every tracked session and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessionRoom))
	for _, room := range h.rooms {
		for _, s := range room {
			sessions = append(sessions, s)
		}
	}
	h.rooms = make(map[string]map[string]*Session)
	h.sessionRoom = make(map[string]string)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close(1001, "hub shutdown")
	}
}
