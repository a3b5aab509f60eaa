package collab

import (
	"context"
	"fmt"
	"sync"

	"github.com/ericfitz/whiteboard/internal/slogging"
)

type hubEvent struct {
	connID string
	data   []byte
	closed bool
}

// Hub serializes every connection's frames and close notifications onto one
// goroutine, so handlers never run concurrently with each other
type Hub struct {
	dispatcher *Dispatcher
	events     chan hubEvent
	done       chan struct{}
	finished   chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a hub feeding dispatcher. buffer is the inbound queue
// length shared by all connections.
func NewHub(dispatcher *Dispatcher, buffer int) *Hub {
	if buffer < 0 {
		buffer = 0
	}
	return &Hub{
		dispatcher: dispatcher,
		events:     make(chan hubEvent, buffer),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
}

// Dispatcher returns the dispatcher the hub feeds
func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// Run processes events until ctx is cancelled. Events already queued when
// ctx ends are still processed. Run returns nil on a normal stop.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.finished)
	defer h.stop()

	handleCtx := context.WithoutCancel(ctx)
	slogging.Get().Info("Collaboration hub started")
	for {
		select {
		case ev := <-h.events:
			h.handle(handleCtx, ev)
		case <-ctx.Done():
			h.stop()
			h.drain(handleCtx)
			slogging.Get().Info("Collaboration hub stopped")
			return nil
		}
	}
}

func (h *Hub) drain(ctx context.Context) {
	for {
		select {
		case ev := <-h.events:
			h.handle(ctx, ev)
		default:
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, ev hubEvent) {
	if ev.closed {
		h.dispatcher.Disconnect(ev.connID)
		return
	}
	h.dispatcher.Dispatch(ctx, ev.connID, ev.data)
}

// Wait blocks until Run has returned, which is after every queued event was
// handled. The dispatcher's timers and the event writer must outlive it.
func (h *Hub) Wait(ctx context.Context) error {
	select {
	case <-h.finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for hub to drain: %w", ctx.Err())
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Submit queues an inbound frame. It blocks while the queue is full and
// returns ErrHubStopped once the hub has stopped.
func (h *Hub) Submit(connID string, data []byte) error {
	return h.enqueue(hubEvent{connID: connID, data: data})
}

// Closed queues the close of a connection
func (h *Hub) Closed(connID string) error {
	return h.enqueue(hubEvent{connID: connID, closed: true})
}

func (h *Hub) enqueue(ev hubEvent) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}
