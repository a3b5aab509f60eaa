package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ericfitz/whiteboard/internal/slogging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrQueueFull is returned by Append when the pending queue has no room
	ErrQueueFull = errors.New("event log queue is full")
	// ErrWriterClosed is returned by Append after Close has been called
	ErrWriterClosed = errors.New("event log writer is closed")
)

// WriterOptions configure a Writer
type WriterOptions struct {
	QueueSize    int
	WriteTimeout time.Duration
	// Observe, when set, is called from the worker after every store attempt
	Observe func(ev Event, err error)
}

// Writer appends events to a Store from a single background goroutine.
// Events are written in exactly the order Append accepted them. A write the
// store gives up on is logged and reported to Observe, and that event is
// missing from replay.
type Writer struct {
	store   Store
	opts    WriterOptions
	tracer  trace.Tracer
	queue   chan Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewWriter creates a writer. Call Start before appending.
func NewWriter(store Store, opts WriterOptions) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Writer{
		store:  store,
		opts:   opts,
		tracer: otel.Tracer("github.com/ericfitz/whiteboard/internal/eventlog"),
		queue:  make(chan Event, opts.QueueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	slogging.Get().Info("event log writer started (queue=%d)", cap(w.queue))
	go w.run()
}

// Append enqueues ev without blocking
func (w *Writer) Append(ev Event) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	select {
	case w.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued events not yet handed to the store
func (w *Writer) Pending() int {
	return len(w.queue)
}

// Close stops accepting events and waits for the queue to drain or for ctx
// to end, whichever comes first.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	started := w.started
	w.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-w.done:
		slogging.Get().Info("event log writer drained and stopped")
		return nil
	case <-ctx.Done():
		slogging.Get().Warn("event log writer stopped with %d events unwritten: %v", len(w.queue), ctx.Err())
		return fmt.Errorf("event log drain interrupted: %w", ctx.Err())
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for ev := range w.queue {
		w.write(ev)
	}
}

func (w *Writer) write(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.WriteTimeout)
	defer cancel()

	ctx, span := w.tracer.Start(ctx, "eventlog.append", trace.WithAttributes(
		attribute.String("room.id", ev.RoomID),
		attribute.String("event.kind", string(ev.Kind)),
	))
	defer span.End()

	stored, err := w.store.AppendEvent(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slogging.Get().Error("failed to persist %s event for room %s by user %s: %v",
			ev.Kind, ev.RoomID, ev.UserID, err)
	} else {
		span.SetAttributes(attribute.Int64("event.seq", int64(stored.Seq)))
	}

	if w.opts.Observe != nil {
		w.opts.Observe(ev, err)
	}
}
