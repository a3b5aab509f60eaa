// Package debounce implements keyed trailing-edge timers.
//
// A Table holds at most one pending timer per key. Scheduling a key that is
// already pending cancels the old timer and replaces its payload, so the
// callback only ever sees the most recent value once the key goes quiet.
package debounce

import (
	"sync"
	"time"
)

// FireFunc receives the key and the last payload scheduled for it
type FireFunc[K comparable, P any] func(key K, payload P)

type entry[P any] struct {
	timer   *time.Timer
	payload P
	// gen identifies which Schedule call armed the timer. A timer that fires
	// after being superseded sees a different gen and does nothing.
	gen uint64
}

// Table is a set of debounce timers keyed by K
type Table[K comparable, P any] struct {
	mu      sync.Mutex
	entries map[K]*entry[P]
	fire    FireFunc[K, P]
	gen     uint64
	stopped bool
}

// NewTable creates a table that calls fire when a key's timer elapses.
// fire runs on the timer goroutine; it must not call back into the table
// while holding locks the table's callers also take.
func NewTable[K comparable, P any](fire FireFunc[K, P]) *Table[K, P] {
	return &Table[K, P]{
		entries: make(map[K]*entry[P]),
		fire:    fire,
	}
}

// Schedule arms (or re-arms) the timer for key with the given payload.
// Returns false if the table has been stopped.
func (t *Table[K, P]) Schedule(key K, payload P, delay time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}

	if old, ok := t.entries[key]; ok {
		old.timer.Stop()
	}

	t.gen++
	e := &entry[P]{payload: payload, gen: t.gen}
	gen := t.gen
	e.timer = time.AfterFunc(delay, func() { t.expire(key, gen) })
	t.entries[key] = e
	return true
}

func (t *Table[K, P]) expire(key K, gen uint64) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok || e.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	t.mu.Unlock()

	t.fire(key, e.payload)
}

// Cancel discards the pending timer for key without firing it.
// Returns the discarded payload, if any.
func (t *Table[K, P]) Cancel(key K) (P, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		var zero P
		return zero, false
	}
	e.timer.Stop()
	delete(t.entries, key)
	return e.payload, true
}

// Pending reports whether key has an armed timer
func (t *Table[K, P]) Pending(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// Len returns the number of armed timers
func (t *Table[K, P]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Flush fires every pending timer immediately on the calling goroutine and
// returns how many fired. The table stays usable afterwards.
func (t *Table[K, P]) Flush() int {
	t.mu.Lock()
	drained := make(map[K]P, len(t.entries))
	for key, e := range t.entries {
		e.timer.Stop()
		drained[key] = e.payload
	}
	t.entries = make(map[K]*entry[P])
	t.mu.Unlock()

	for key, payload := range drained {
		t.fire(key, payload)
	}
	return len(drained)
}

// Stop flushes pending timers and rejects any further Schedule calls
func (t *Table[K, P]) Stop() int {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return t.Flush()
}
