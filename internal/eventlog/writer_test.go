package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingStore holds every append until release is closed
type blockingStore struct {
	*MemoryStore
	release chan struct{}
}

func (b *blockingStore) AppendEvent(ctx context.Context, ev Event) (Event, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
	return b.MemoryStore.AppendEvent(ctx, ev)
}

func chatEvent(room string, n int) Event {
	return Event{
		RoomID:  room,
		UserID:  "u1",
		Kind:    KindChat,
		Payload: json.RawMessage(fmt.Sprintf(`"message %d"`, n)),
	}
}

func TestWriter_PreservesOrder(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, WriterOptions{QueueSize: 256})
	w.Start()

	for i := 0; i < 100; i++ {
		require.NoError(t, w.Append(chatEvent("r1", i)))
	}
	require.NoError(t, w.Close(context.Background()))

	events, err := store.ListEvents(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, events, 100)
	for i, ev := range events {
		assert.JSONEq(t, fmt.Sprintf(`"message %d"`, i), string(ev.Payload))
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestWriter_FailureIsObservedAndDoesNotStopWorker(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("disk full")
	store.FailWith = func(ev Event) error {
		if string(ev.Payload) == `"message 1"` {
			return boom
		}
		return nil
	}

	var mu sync.Mutex
	var failures []error
	w := NewWriter(store, WriterOptions{
		QueueSize: 8,
		Observe: func(_ Event, err error) {
			if err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		},
	})
	w.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Append(chatEvent("r1", i)))
	}
	require.NoError(t, w.Close(context.Background()))

	events, _ := store.ListEvents(context.Background(), "r1")
	require.Len(t, events, 2, "the failed event leaves a replay gap")
	assert.JSONEq(t, `"message 0"`, string(events[0].Payload))
	assert.JSONEq(t, `"message 2"`, string(events[1].Payload))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], boom)
}

func TestWriter_QueueFull(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	w := NewWriter(store, WriterOptions{QueueSize: 1})
	w.Start()

	// First event is taken by the worker and blocks; second fills the queue
	require.NoError(t, w.Append(chatEvent("r1", 0)))
	assert.Eventually(t, func() bool { return w.Pending() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, w.Append(chatEvent("r1", 1)))

	assert.ErrorIs(t, w.Append(chatEvent("r1", 2)), ErrQueueFull)

	close(store.release)
	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, 2, store.Len())
}

func TestWriter_AppendAfterClose(t *testing.T) {
	w := NewWriter(NewMemoryStore(), WriterOptions{})
	w.Start()
	require.NoError(t, w.Close(context.Background()))

	assert.ErrorIs(t, w.Append(chatEvent("r1", 0)), ErrWriterClosed)
	// Closing twice is harmless
	assert.NoError(t, w.Close(context.Background()))
}

func TestWriter_CloseRespectsDeadline(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	defer close(store.release)

	w := NewWriter(store, WriterOptions{QueueSize: 4, WriteTimeout: time.Minute})
	w.Start()
	require.NoError(t, w.Append(chatEvent("r1", 0)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Close(ctx), context.DeadlineExceeded)
}

func TestWriter_RejectsUnknownKind(t *testing.T) {
	w := NewWriter(NewMemoryStore(), WriterOptions{})
	err := w.Append(Event{RoomID: "r1", Kind: "resize"})
	assert.ErrorContains(t, err, "unknown event kind")
}
