package collab

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfitz/whiteboard/internal/eventlog"
)

type countingMetrics struct {
	noopMetrics
	coalesced int
	rejected  map[string]int
}

func (m *countingMetrics) DragCoalesced() { m.coalesced++ }

func (m *countingMetrics) EventRejected(kind, reason string) {
	if m.rejected == nil {
		m.rejected = map[string]int{}
	}
	m.rejected[kind+"/"+reason]++
}

func TestDragDebouncer_KeysByRoomAndShape(t *testing.T) {
	events := &recordingAppender{}
	metrics := &countingMetrics{}
	d := NewDragDebouncer(events, time.Hour, metrics)

	d.Update("r1", "s1", "alice", json.RawMessage(`{"id":"s1","x":1}`))
	d.Update("r1", "s1", "bob", json.RawMessage(`{"id":"s1","x":2}`))
	d.Update("r2", "s1", "alice", json.RawMessage(`{"id":"s1","x":3}`))
	assert.True(t, d.Pending("r1", "s1"))
	assert.True(t, d.Pending("r2", "s1"))
	assert.Equal(t, 1, metrics.coalesced)

	assert.Equal(t, 2, d.Flush())
	assert.False(t, d.Pending("r1", "s1"))

	byRoom := map[string]eventlog.Event{}
	for _, ev := range events.snapshot() {
		byRoom[ev.RoomID] = ev
	}
	require.Len(t, byRoom, 2)
	assert.Equal(t, "bob", byRoom["r1"].UserID, "last edit wins")
	assert.JSONEq(t, `{"id":"s1","x":2}`, string(byRoom["r1"].Payload))
}

func TestDragDebouncer_ReplaceDropsPendingWrite(t *testing.T) {
	events := &recordingAppender{}
	d := NewDragDebouncer(events, time.Hour, nil)

	d.Update("r1", "s1", "alice", json.RawMessage(`{"id":"s1"}`))
	shapeID := "s1"
	assert.True(t, d.Replace(eventlog.Event{RoomID: "r1", ShapeID: shapeID, Kind: eventlog.KindShapeDelete, Payload: json.RawMessage(`{}`)}))
	assert.False(t, d.Replace(eventlog.Event{RoomID: "r1", ShapeID: shapeID, Kind: eventlog.KindShapeDelete, Payload: json.RawMessage(`{}`)}))

	assert.Equal(t, 0, d.Flush())
	assert.Equal(t, 2, events.count(eventlog.KindShapeDelete))
	assert.Equal(t, 0, events.count(eventlog.KindShapeUpdate))
}

func TestDragDebouncer_StopRejectsLaterUpdates(t *testing.T) {
	events := &recordingAppender{}
	d := NewDragDebouncer(events, time.Hour, nil)

	d.Update("r1", "s1", "alice", json.RawMessage(`{"id":"s1"}`))
	assert.Equal(t, 1, d.Stop())
	d.Update("r1", "s2", "alice", json.RawMessage(`{"id":"s2"}`))
	assert.False(t, d.Pending("r1", "s2"))
	assert.Equal(t, 1, events.count(eventlog.KindShapeUpdate))
}

func TestDragDebouncer_RecordsRejectedWrites(t *testing.T) {
	events := &recordingAppender{err: eventlog.ErrWriterClosed}
	metrics := &countingMetrics{}
	d := NewDragDebouncer(events, time.Hour, metrics)

	d.Update("r1", "s1", "alice", json.RawMessage(`{"id":"s1"}`))
	d.Flush()
	assert.Equal(t, 1, metrics.rejected["shape_update/closed"])
}
