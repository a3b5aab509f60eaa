// Package eventlog persists the append-only history of every room.
//
// Events are immutable once written. Their order within a room is the order
// the store assigned sequence numbers, which is also replay order.
package eventlog

import (
	"context"
	"encoding/json"
	"time"
)

// Kind is the semantic type of a logged action
type Kind string

const (
	KindShapeCreate Kind = "shape_create"
	KindShapeUpdate Kind = "shape_update"
	KindShapeDelete Kind = "shape_delete"
	KindChat        Kind = "chat"
)

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindShapeCreate, KindShapeUpdate, KindShapeDelete, KindChat:
		return true
	}
	return false
}

// Event is one entry in a room's history
type Event struct {
	Seq       uint64          `json:"seq"`
	ID        string          `json:"id"`
	RoomID    string          `json:"roomId"`
	UserID    string          `json:"userId"`
	Kind      Kind            `json:"kind"`
	ShapeID   string          `json:"shapeId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store is the persistence collaborator behind the log
type Store interface {
	// AppendEvent durably writes ev and returns it with Seq, ID and CreatedAt set
	AppendEvent(ctx context.Context, ev Event) (Event, error)
	// ListEvents returns every event for the room in ascending Seq order
	ListEvents(ctx context.Context, roomID string) ([]Event, error)
}
