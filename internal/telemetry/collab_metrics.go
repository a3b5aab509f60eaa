package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CollabMetrics records collaboration activity. A nil *CollabMetrics is valid
// and records nothing.
type CollabMetrics struct {
	connections     metric.Int64UpDownCounter
	frames          metric.Int64Counter
	frameDuration   metric.Float64Histogram
	framesDropped   metric.Int64Counter
	broadcasts      metric.Int64Counter
	recipients      metric.Int64Counter
	sendFailures    metric.Int64Counter
	dragsCoalesced  metric.Int64Counter
	eventsPersisted metric.Int64Counter
	eventsRejected  metric.Int64Counter
}

// NewCollabMetrics creates the instruments on meter
func NewCollabMetrics(meter metric.Meter) (*CollabMetrics, error) {
	m := &CollabMetrics{}
	var err error

	if m.connections, err = meter.Int64UpDownCounter("whiteboard_connections_active",
		metric.WithDescription("Number of open collaboration connections")); err != nil {
		return nil, fmt.Errorf("failed to create connection counter: %w", err)
	}
	if m.frames, err = meter.Int64Counter("whiteboard_frames_total",
		metric.WithDescription("Inbound frames handled, by message type and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create frame counter: %w", err)
	}
	if m.frameDuration, err = meter.Float64Histogram("whiteboard_frame_duration_seconds",
		metric.WithDescription("Time spent dispatching one inbound frame"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1)); err != nil {
		return nil, fmt.Errorf("failed to create frame duration histogram: %w", err)
	}
	if m.framesDropped, err = meter.Int64Counter("whiteboard_frames_dropped_total",
		metric.WithDescription("Inbound frames dropped before dispatch, by reason")); err != nil {
		return nil, fmt.Errorf("failed to create dropped frame counter: %w", err)
	}
	if m.broadcasts, err = meter.Int64Counter("whiteboard_broadcasts_total",
		metric.WithDescription("Fanout operations, by message type")); err != nil {
		return nil, fmt.Errorf("failed to create broadcast counter: %w", err)
	}
	if m.recipients, err = meter.Int64Counter("whiteboard_broadcast_recipients_total",
		metric.WithDescription("Frames delivered by fanout")); err != nil {
		return nil, fmt.Errorf("failed to create recipient counter: %w", err)
	}
	if m.sendFailures, err = meter.Int64Counter("whiteboard_send_failures_total",
		metric.WithDescription("Per-recipient send failures during fanout")); err != nil {
		return nil, fmt.Errorf("failed to create send failure counter: %w", err)
	}
	if m.dragsCoalesced, err = meter.Int64Counter("whiteboard_drag_updates_coalesced_total",
		metric.WithDescription("Dragging updates whose pending write was superseded")); err != nil {
		return nil, fmt.Errorf("failed to create drag counter: %w", err)
	}
	if m.eventsPersisted, err = meter.Int64Counter("whiteboard_events_persisted_total",
		metric.WithDescription("Event log writes, by kind and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create persisted counter: %w", err)
	}
	if m.eventsRejected, err = meter.Int64Counter("whiteboard_events_rejected_total",
		metric.WithDescription("Events not queued for persistence, by reason")); err != nil {
		return nil, fmt.Errorf("failed to create rejected counter: %w", err)
	}

	return m, nil
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", "error")
	}
	return attribute.String("outcome", "ok")
}

// ConnectionOpened increments the active connection gauge
func (m *CollabMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Add(context.Background(), 1)
}

// ConnectionClosed decrements the active connection gauge
func (m *CollabMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Add(context.Background(), -1)
}

// FrameHandled records one dispatched frame
func (m *CollabMetrics) FrameHandled(msgType string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("type", msgType), outcome(err))
	m.frames.Add(ctx, 1, attrs)
	m.frameDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("type", msgType)))
}

// FrameDropped records a frame rejected before dispatch
func (m *CollabMetrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Broadcast records one fanout
func (m *CollabMetrics) Broadcast(msgType string, delivered, failed int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("type", msgType))
	m.broadcasts.Add(ctx, 1, attrs)
	m.recipients.Add(ctx, int64(delivered), attrs)
	if failed > 0 {
		m.sendFailures.Add(ctx, int64(failed), attrs)
	}
}

// DragCoalesced records a pending drag write replaced by a newer one
func (m *CollabMetrics) DragCoalesced() {
	if m == nil {
		return
	}
	m.dragsCoalesced.Add(context.Background(), 1)
}

// EventPersisted records the outcome of one event log write
func (m *CollabMetrics) EventPersisted(kind string, err error) {
	if m == nil {
		return
	}
	m.eventsPersisted.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind), outcome(err)))
}

// EventRejected records an event the writer refused to queue
func (m *CollabMetrics) EventRejected(kind, reason string) {
	if m == nil {
		return
	}
	m.eventsRejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind), attribute.String("reason", reason)))
}
