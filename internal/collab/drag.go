package collab

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ericfitz/whiteboard/internal/debounce"
	"github.com/ericfitz/whiteboard/internal/eventlog"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

// EventAppender queues events for persistence without blocking.
// eventlog.Writer implements it.
type EventAppender interface {
	Append(ev eventlog.Event) error
}

// eventSink hands events to the appender and records rejections
type eventSink struct {
	appender EventAppender
	metrics  Metrics
}

func (s eventSink) persist(ev eventlog.Event) {
	err := s.appender.Append(ev)
	if err == nil {
		return
	}

	reason := "error"
	switch {
	case errors.Is(err, eventlog.ErrQueueFull):
		reason = "queue_full"
	case errors.Is(err, eventlog.ErrWriterClosed):
		reason = "closed"
	}
	s.metrics.EventRejected(string(ev.Kind), reason)
	slogging.Get().Error("Failed to queue %s event for room %s by user %s: %v",
		ev.Kind, ev.RoomID, ev.UserID, err)
}

type dragKey struct {
	roomID  string
	shapeID string
}

type dragWrite struct {
	userID string
	shape  json.RawMessage
	gen    uint64
}

// DragDebouncer collapses a burst of dragging edits to one shape into a
// single shape_update write carrying the last position. A write is keyed by
// room and shape, so two users dragging the same shape share one timer and
// the last edit received wins.
type DragDebouncer struct {
	// mu orders a timer's write against Replace, so a write that fired just
	// before an immediate edit can never land after it.
	mu      sync.Mutex
	current map[dragKey]uint64
	gen     uint64

	table   *debounce.Table[dragKey, dragWrite]
	delay   time.Duration
	sink    eventSink
	metrics Metrics
}

// NewDragDebouncer creates a debouncer that writes through appender once a
// shape has been quiet for delay
func NewDragDebouncer(appender EventAppender, delay time.Duration, metrics Metrics) *DragDebouncer {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	d := &DragDebouncer{
		current: make(map[dragKey]uint64),
		delay:   delay,
		sink:    eventSink{appender: appender, metrics: metrics},
		metrics: metrics,
	}
	d.table = debounce.NewTable(d.fire)
	return d
}

// Update records the latest dragging state of a shape and restarts its timer
func (d *DragDebouncer) Update(roomID, shapeID, userID string, shape json.RawMessage) {
	key := dragKey{roomID: roomID, shapeID: shapeID}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, pending := d.current[key]; pending {
		d.metrics.DragCoalesced()
	}
	d.gen++
	d.current[key] = d.gen
	if !d.table.Schedule(key, dragWrite{userID: userID, shape: shape, gen: d.gen}, d.delay) {
		delete(d.current, key)
		slogging.Get().Warn("Dropped drag update for shape %s in room %s: debouncer stopped", shapeID, roomID)
	}
}

// Replace discards any pending write for the event's shape and queues ev in
// its place
func (d *DragDebouncer) Replace(ev eventlog.Event) bool {
	shapeID := ev.ShapeID
	key := dragKey{roomID: ev.RoomID, shapeID: shapeID}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, cancelled := d.table.Cancel(key)
	if _, pending := d.current[key]; pending {
		cancelled = true
		delete(d.current, key)
	}
	if cancelled {
		slogging.Get().Debug("Cancelled pending drag write for shape %s in room %s", shapeID, ev.RoomID)
	}
	d.sink.persist(ev)
	return cancelled
}

// Pending reports whether a write is waiting for the shape
func (d *DragDebouncer) Pending(roomID, shapeID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.current[dragKey{roomID: roomID, shapeID: shapeID}]
	return ok
}

// Flush writes every pending shape now and returns how many were written
func (d *DragDebouncer) Flush() int {
	return d.table.Flush()
}

// Stop flushes pending writes and ignores later updates
func (d *DragDebouncer) Stop() int {
	return d.table.Stop()
}

func (d *DragDebouncer) fire(key dragKey, w dragWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current[key] != w.gen {
		return
	}
	delete(d.current, key)

	d.sink.persist(eventlog.Event{
		RoomID:  key.roomID,
		UserID:  w.userID,
		Kind:    eventlog.KindShapeUpdate,
		ShapeID: key.shapeID,
		Payload: w.shape,
	})
	slogging.Get().Debug("Wrote debounced position of shape %s in room %s", key.shapeID, key.roomID)
}
