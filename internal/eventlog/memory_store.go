package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/ericfitz/whiteboard/internal/uuidgen"
)

// MemoryStore is a process-local Store. It backs tests and single-node runs
// that do not need history to survive a restart.
type MemoryStore struct {
	mu     sync.Mutex
	seq    uint64
	events []Event
	// FailWith, when set, makes AppendEvent fail for matching events
	FailWith func(ev Event) error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendEvent stores ev with the next sequence number
func (m *MemoryStore) AppendEvent(_ context.Context, ev Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		if err := m.FailWith(ev); err != nil {
			return Event{}, err
		}
	}

	m.seq++
	ev.Seq = m.seq
	if ev.ID == "" {
		ev.ID = uuidgen.NewString(uuidgen.KindEvent)
	}
	ev.CreatedAt = time.Now().UTC()
	m.events = append(m.events, ev)
	return ev, nil
}

// ListEvents returns the room's events in insertion order
func (m *MemoryStore) ListEvents(_ context.Context, roomID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, ev := range m.events {
		if ev.RoomID == roomID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Len returns the total number of stored events across all rooms
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
