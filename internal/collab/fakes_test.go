package collab

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfitz/whiteboard/internal/eventlog"
	"github.com/ericfitz/whiteboard/internal/profile"
)

type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  [][]byte
	open    bool
	sendErr error
	closes  int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, open: true}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if !c.open {
		return ErrConnectionClosed
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.closes++
	return nil
}

func (c *fakeConn) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *fakeConn) failSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// received decodes every frame of msgType sent to the connection
func (c *fakeConn) received(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, frame := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(frame, &m))
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

type recordingAppender struct {
	mu     sync.Mutex
	events []eventlog.Event
	err    error
}

func (a *recordingAppender) Append(ev eventlog.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAppender) snapshot() []eventlog.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]eventlog.Event(nil), a.events...)
}

func (a *recordingAppender) count(kind eventlog.Kind) int {
	n := 0
	for _, ev := range a.snapshot() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	names map[string]string
	err   error
	delay time.Duration
	calls int
	mu    sync.Mutex
}

func (f *fakeDirectory) DisplayName(_ context.Context, userID string) (string, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	name, ok := f.names[userID]
	if !ok {
		return "", profile.ErrUserNotFound
	}
	return name, nil
}

func (f *fakeDirectory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type engine struct {
	t          *testing.T
	dispatcher *Dispatcher
	events     *recordingAppender
	conns      map[string]*fakeConn
}

func newEngine(t *testing.T, dir profile.Directory) *engine {
	t.Helper()
	events := &recordingAppender{}
	d := NewDispatcher(Deps{Events: events, Directory: dir}, Options{
		DragDebounce:      30 * time.Millisecond,
		DrawingTimeout:    50 * time.Millisecond,
		NameLookupTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { d.Shutdown() })
	return &engine{t: t, dispatcher: d, events: events, conns: make(map[string]*fakeConn)}
}

// connect registers a connection for userID under connID
func (e *engine) connect(connID, userID, name string) *fakeConn {
	e.t.Helper()
	conn := newFakeConn(connID)
	_, err := e.dispatcher.Register(context.Background(), conn, userID, name)
	require.NoError(e.t, err)
	e.conns[connID] = conn
	return conn
}

func (e *engine) send(connID string, frame map[string]any) {
	e.t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(e.t, err)
	e.dispatcher.Dispatch(context.Background(), connID, data)
}

func (e *engine) join(connID, roomID string) {
	e.send(connID, map[string]any{"type": TypeJoinRoom, "roomId": roomID})
}

func shapeFrame(msgType, roomID, shapeID string, x int) map[string]any {
	return map[string]any{
		"type":   msgType,
		"roomId": roomID,
		"shape":  map[string]any{"id": shapeID, "type": "rect", "x": x, "y": 0},
	}
}
