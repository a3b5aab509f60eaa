package collab

import "time"

// Metrics receives counters from the engine. telemetry.CollabMetrics
// implements it.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	FrameHandled(msgType string, elapsed time.Duration, err error)
	FrameDropped(reason string)
	Broadcast(msgType string, delivered, failed int)
	DragCoalesced()
	EventPersisted(kind string, err error)
	EventRejected(kind, reason string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()                         {}
func (noopMetrics) ConnectionClosed()                         {}
func (noopMetrics) FrameHandled(string, time.Duration, error) {}
func (noopMetrics) FrameDropped(string)                       {}
func (noopMetrics) Broadcast(string, int, int)                {}
func (noopMetrics) DragCoalesced()                            {}
func (noopMetrics) EventPersisted(string, error)              {}
func (noopMetrics) EventRejected(string, string)              {}
