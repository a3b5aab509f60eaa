package collab

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry owns every live session. One lock guards the session map and the
// fields of every session in it, so membership reads for a broadcast never
// interleave with a join or leave.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextSeq  uint64
	now      func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Register creates the session for conn. displayName may be empty.
func (r *Registry) Register(conn Connection, userID, displayName string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[conn.ID()]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, conn.ID())
	}

	r.nextSeq++
	now := r.now()
	s := &Session{
		mu:             &r.mu,
		conn:           conn,
		seq:            r.nextSeq,
		userID:         userID,
		displayName:    displayName,
		rooms:          make(map[string]struct{}),
		lastActivityAt: now,
		connectedAt:    now,
	}
	r.sessions[conn.ID()] = s
	return s, nil
}

// Find returns the session for a connection id
func (r *Registry) Find(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Remove deletes the session for a connection id. Only the first call for a
// given id returns ok, which makes close handling idempotent.
func (r *Registry) Remove(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, connID)
	return s, true
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ActiveMembers returns the sessions in roomID whose connection is open,
// in registration order, leaving out excludeConnID when it is non-empty.
// It is computed on every call.
func (r *Registry) ActiveMembers(roomID, excludeConnID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var members []*Session
	for id, s := range r.sessions {
		if excludeConnID != "" && id == excludeConnID {
			continue
		}
		if _, ok := s.rooms[roomID]; !ok {
			continue
		}
		if !s.conn.IsOpen() {
			continue
		}
		members = append(members, s)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })
	return members
}

// Participants returns the user id of every active member of roomID, one
// entry per session
func (r *Registry) Participants(roomID string) []string {
	members := r.ActiveMembers(roomID, "")
	ids := make([]string, 0, len(members))
	for _, s := range members {
		ids = append(ids, s.userID)
	}
	return ids
}

// Sessions returns a snapshot of every registered session
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].seq < sessions[j].seq })

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.infoLocked())
	}
	return out
}
