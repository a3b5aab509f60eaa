package collab

import "errors"

var (
	// ErrConnectionClosed is returned by Send on a connection that has shut down
	ErrConnectionClosed = errors.New("connection closed")
	// ErrDuplicateConnection is returned when a connection id is registered twice
	ErrDuplicateConnection = errors.New("connection already registered")
	// ErrMalformedMessage marks a frame that is not valid JSON or lacks required fields
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownMessageType marks a frame whose type has no handler
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrHubStopped is returned when submitting to a hub that is no longer running
	ErrHubStopped = errors.New("hub stopped")
)

// Connection is one client's bidirectional channel. Send must not block for
// long; transports queue frames and write them from their own goroutine.
type Connection interface {
	ID() string
	Send(data []byte) error
	IsOpen() bool
	Close() error
}
