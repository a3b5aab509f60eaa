// Package uuidgen generates identifiers for server-assigned entities.
package uuidgen

import (
	"github.com/google/uuid"
)

// Kind names what an identifier is for
type Kind string

const (
	KindEvent      Kind = "event"
	KindConnection Kind = "connection"
	KindRequest    Kind = "request"
)

// New generates an identifier for kind. Event ids are UUIDv7 so that they sort
// roughly by creation time and keep index inserts local; everything else is a
// random UUIDv4.
func New(kind Kind) (uuid.UUID, error) {
	if kind == KindEvent {
		return uuid.NewV7()
	}
	return uuid.NewRandom()
}

// NewString is New formatted as a string. It falls back to a v4 id if the
// time-ordered generator fails.
func NewString(kind Kind) string {
	id, err := New(kind)
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
