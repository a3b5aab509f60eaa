package collab

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ericfitz/whiteboard/internal/debounce"
	"github.com/ericfitz/whiteboard/internal/profile"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

// HandlerFunc handles one classified frame for an authenticated session
type HandlerFunc func(ctx context.Context, s *Session, f Frame) error

// Options tunes the dispatcher's timers
type Options struct {
	// DragDebounce is how long a dragged shape must be quiet before its
	// position is written
	DragDebounce time.Duration
	// DrawingTimeout clears the drawing flag after the last draw
	DrawingTimeout time.Duration
	// NameLookupTimeout bounds the directory lookup made when a session registers
	NameLookupTimeout time.Duration
}

// DefaultOptions returns the stock timer settings
func DefaultOptions() Options {
	return Options{
		DragDebounce:      100 * time.Millisecond,
		DrawingTimeout:    2 * time.Second,
		NameLookupTimeout: 2 * time.Second,
	}
}

// Dispatcher routes inbound frames to per-type handlers. Dispatch and
// Disconnect are meant to be called from a single goroutine (see Hub).
type Dispatcher struct {
	registry  *Registry
	fanout    *Fanout
	presence  *Presence
	drag      *DragDebouncer
	drawing   *debounce.Table[string, struct{}]
	sink      eventSink
	directory profile.Directory
	metrics   Metrics
	tracer    trace.Tracer
	opts      Options
	handlers  map[string]HandlerFunc
	now       func() time.Time
}

// Deps groups the dispatcher's collaborators. Directory and Metrics may be nil.
type Deps struct {
	Registry  *Registry
	Events    EventAppender
	Directory profile.Directory
	Metrics   Metrics
	Tracer    trace.Tracer
}

// NewDispatcher creates a dispatcher with handlers for every client message type
func NewDispatcher(deps Deps, opts Options) *Dispatcher {
	defaults := DefaultOptions()
	if opts.DragDebounce <= 0 {
		opts.DragDebounce = defaults.DragDebounce
	}
	if opts.DrawingTimeout <= 0 {
		opts.DrawingTimeout = defaults.DrawingTimeout
	}
	if opts.NameLookupTimeout <= 0 {
		opts.NameLookupTimeout = defaults.NameLookupTimeout
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/ericfitz/whiteboard/internal/collab")
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	fanout := NewFanout(registry, metrics)
	d := &Dispatcher{
		registry:  registry,
		fanout:    fanout,
		presence:  NewPresence(registry, fanout),
		drag:      NewDragDebouncer(deps.Events, opts.DragDebounce, metrics),
		sink:      eventSink{appender: deps.Events, metrics: metrics},
		directory: deps.Directory,
		metrics:   metrics,
		tracer:    tracer,
		opts:      opts,
		handlers:  make(map[string]HandlerFunc),
		now:       time.Now,
	}
	d.drawing = debounce.NewTable(d.clearDrawing)

	d.RegisterHandler(TypeJoinRoom, d.handleJoinRoom)
	d.RegisterHandler(TypeLeaveRoom, d.handleLeaveRoom)
	d.RegisterHandler(TypeGetParticipantCount, d.handleGetParticipantCount)
	d.RegisterHandler(TypeUserActivity, d.handleUserActivity)
	d.RegisterHandler(TypeChat, d.handleChat)
	d.RegisterHandler(TypeDraw, d.handleDraw)
	d.RegisterHandler(TypeEditShape, d.handleEditShape)
	d.RegisterHandler(TypeErase, d.handleErase)

	return d
}

// RegisterHandler installs h for msgType, replacing any existing handler
func (d *Dispatcher) RegisterHandler(msgType string, h HandlerFunc) {
	d.handlers[msgType] = h
}

// Registry returns the session registry
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Presence returns the presence broadcaster
func (d *Dispatcher) Presence() *Presence {
	return d.presence
}

// Register creates the session for a connection that passed the handshake.
// A generic displayName is resolved against the directory here, on the
// caller's goroutine, and the outcome (the user id when the lookup fails) is
// kept for the life of the session so frame handling never queries it.
func (d *Dispatcher) Register(ctx context.Context, conn Connection, userID, displayName string) (*Session, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, d.opts.NameLookupTimeout)
	name, _ := profile.Resolve(lookupCtx, d.directory, userID, displayName)
	cancel()

	s, err := d.registry.Register(conn, userID, name)
	if err != nil {
		return nil, err
	}
	d.metrics.ConnectionOpened()
	slogging.Get().Info("Session registered: connection %s user %s", conn.ID(), userID)
	return s, nil
}

// Dispatch classifies raw and runs its handler. Malformed, unknown and
// failing frames are logged and dropped; nothing is sent back to the client.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, raw []byte) {
	s, ok := d.registry.Find(connID)
	if !ok {
		d.metrics.FrameDropped("no_session")
		slogging.Get().Debug("Dropped frame from unregistered connection %s", connID)
		return
	}

	frame, err := ParseFrame(raw)
	if err != nil {
		d.metrics.FrameDropped("malformed")
		slogging.Get().Warn("Dropped malformed frame from connection %s (user %s): %v", connID, s.UserID(), err)
		return
	}

	handler, ok := d.handlers[frame.Type]
	if !ok {
		d.metrics.FrameDropped("unknown_type")
		slogging.Get().Warn("Dropped frame from connection %s (user %s): %v: %s",
			connID, s.UserID(), ErrUnknownMessageType, frame.Type)
		return
	}

	ctx, span := d.tracer.Start(ctx, "collab."+frame.Type,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("collab.connection_id", connID),
			attribute.String("collab.user_id", s.UserID()),
		))
	defer span.End()

	start := d.now()
	err = d.invoke(ctx, handler, s, frame)
	d.metrics.FrameHandled(frame.Type, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrMalformedMessage) {
			slogging.Get().Warn("Dropped %s from connection %s (user %s): %v", frame.Type, connID, s.UserID(), err)
		} else {
			slogging.Get().Error("Failed to handle %s from connection %s (user %s): %v", frame.Type, connID, s.UserID(), err)
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h HandlerFunc, s *Session, f Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slogging.Get().Error("PANIC in %s handler for connection %s (user %s): %v\nStack: %s",
				f.Type, s.ConnID(), s.UserID(), r, debug.Stack())
			err = fmt.Errorf("%s handler panicked: %v", f.Type, r)
		}
	}()
	return h(ctx, s, f)
}

// Disconnect removes the connection's session and announces the new
// participant list to every room it was in. Only the first call for a
// connection does anything; it reports whether that was this call.
func (d *Dispatcher) Disconnect(connID string) bool {
	s, ok := d.registry.Remove(connID)
	if !ok {
		return false
	}
	d.drawing.Cancel(connID)
	d.metrics.ConnectionClosed()

	if err := s.conn.Close(); err != nil {
		slogging.Get().Debug("Close of connection %s returned: %v", connID, err)
	}

	rooms := s.Rooms()
	for _, room := range rooms {
		d.presence.Announce(room, "")
	}
	slogging.Get().Info("Session removed: connection %s user %s, left rooms %v", connID, s.UserID(), rooms)
	return true
}

// Shutdown writes pending drag positions and stops all timers. It returns
// the number of drag writes flushed.
func (d *Dispatcher) Shutdown() int {
	flushed := d.drag.Stop()
	d.drawing.Stop()
	if flushed > 0 {
		slogging.Get().Info("Flushed %d pending drag writes", flushed)
	}
	return flushed
}

// displayName returns the name resolved at registration
func displayName(s *Session) string {
	if name := s.DisplayName(); name != "" {
		return name
	}
	return s.UserID()
}

func (d *Dispatcher) markDrawing(s *Session) {
	s.SetDrawing(true)
	d.drawing.Schedule(s.ConnID(), struct{}{}, d.opts.DrawingTimeout)
}

func (d *Dispatcher) clearDrawing(connID string, _ struct{}) {
	if s, ok := d.registry.Find(connID); ok {
		s.SetDrawing(false)
	}
}
