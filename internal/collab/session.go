package collab

import (
	"sort"
	"sync"
	"time"
)

// Session is the state of one authenticated connection. Its fields are
// guarded by the owning Registry's lock, so every accessor takes that lock.
type Session struct {
	mu   *sync.RWMutex
	conn Connection
	seq  uint64

	userID         string
	displayName    string
	rooms          map[string]struct{}
	isDrawing      bool
	lastActivityAt time.Time
	connectedAt    time.Time
}

// ConnID returns the id of the underlying connection
func (s *Session) ConnID() string {
	return s.conn.ID()
}

// Conn returns the underlying connection
func (s *Session) Conn() Connection {
	return s.conn
}

// UserID returns the verified user id
func (s *Session) UserID() string {
	return s.userID
}

// Join adds roomID to the session and reports whether it was newly added
func (s *Session) Join(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

// Leave removes roomID and reports whether the session had been in it
func (s *Session) Leave(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return false
	}
	delete(s.rooms, roomID)
	return true
}

// InRoom reports whether the session has joined roomID
func (s *Session) InRoom(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns the joined room ids in sorted order
func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomsLocked()
}

func (s *Session) roomsLocked() []string {
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// DisplayName returns the cached display name, possibly empty
func (s *Session) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayName
}

// SetDisplayName caches a resolved display name
func (s *Session) SetDisplayName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayName = name
}

// IsDrawing reports the drawing flag
func (s *Session) IsDrawing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isDrawing
}

// SetDrawing sets the drawing flag
func (s *Session) SetDrawing(drawing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isDrawing = drawing
}

// Touch records activity at t
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = t
}

// LastActivityAt returns when the session last reported activity
func (s *Session) LastActivityAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivityAt
}

// SessionInfo is a point-in-time copy of a session for read endpoints
type SessionInfo struct {
	ConnID         string    `json:"connectionId"`
	UserID         string    `json:"userId"`
	DisplayName    string    `json:"userName,omitempty"`
	Rooms          []string  `json:"rooms"`
	IsDrawing      bool      `json:"isDrawing"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ConnectedAt    time.Time `json:"connectedAt"`
}

func (s *Session) infoLocked() SessionInfo {
	return SessionInfo{
		ConnID:         s.conn.ID(),
		UserID:         s.userID,
		DisplayName:    s.displayName,
		Rooms:          s.roomsLocked(),
		IsDrawing:      s.isDrawing,
		LastActivityAt: s.lastActivityAt,
		ConnectedAt:    s.connectedAt,
	}
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}
