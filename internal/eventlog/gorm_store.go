package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfitz/whiteboard/internal/database"
	"gorm.io/gorm"
)

// GormStore keeps events in the room_events table
type GormStore struct {
	db    *gorm.DB
	retry database.RetryConfig
}

// NewGormStore creates a store on an open GORM connection. Inserts that fail
// with a transient connection error are retried.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, retry: database.DefaultRetryConfig()}
}

// WithRetry replaces the insert retry policy
func (s *GormStore) WithRetry(cfg database.RetryConfig) *GormStore {
	s.retry = cfg
	return s
}

// AppendEvent inserts ev and returns it with database-assigned fields
func (s *GormStore) AppendEvent(ctx context.Context, ev Event) (Event, error) {
	row := database.RoomEvent{
		ID:      ev.ID,
		RoomID:  ev.RoomID,
		Kind:    string(ev.Kind),
		UserID:  ev.UserID,
		Payload: string(ev.Payload),
	}
	if ev.ShapeID != "" {
		shapeID := ev.ShapeID
		row.ShapeID = &shapeID
	}

	err := database.WithRetry(ctx, s.retry, "insert room event", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Create(&row).Error
	})
	if err != nil {
		return Event{}, fmt.Errorf("failed to insert event for room %s: %w", ev.RoomID, err)
	}
	return fromRow(row), nil
}

// ListEvents returns the room's events in insertion order
func (s *GormStore) ListEvents(ctx context.Context, roomID string) ([]Event, error) {
	var rows []database.RoomEvent
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events for room %s: %w", roomID, err)
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromRow(row))
	}
	return events, nil
}

func fromRow(row database.RoomEvent) Event {
	ev := Event{
		Seq:       row.Seq,
		ID:        row.ID,
		RoomID:    row.RoomID,
		UserID:    row.UserID,
		Kind:      Kind(row.Kind),
		Payload:   json.RawMessage(row.Payload),
		CreatedAt: row.CreatedAt,
	}
	if row.ShapeID != nil {
		ev.ShapeID = *row.ShapeID
	}
	return ev
}
