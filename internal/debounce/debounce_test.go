package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	fired map[string][]int
}

func newRecorder() *recorder {
	return &recorder{fired: make(map[string][]int)}
}

func (r *recorder) fire(key string, payload int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired[key] = append(r.fired[key], payload)
}

func (r *recorder) get(key string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.fired[key]...)
}

func TestSchedule_CollapsesBurstToLastPayload(t *testing.T) {
	rec := newRecorder()
	table := NewTable(rec.fire)

	for i := 1; i <= 50; i++ {
		require.True(t, table.Schedule("shape-1", i, 30*time.Millisecond))
	}
	assert.True(t, table.Pending("shape-1"))

	assert.Eventually(t, func() bool {
		return len(rec.get("shape-1")) == 1
	}, time.Second, 5*time.Millisecond)

	// Give any stray timers a chance to misfire
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []int{50}, rec.get("shape-1"))
	assert.False(t, table.Pending("shape-1"))
	assert.Equal(t, 0, table.Len())
}

func TestSchedule_KeysAreIndependent(t *testing.T) {
	rec := newRecorder()
	table := NewTable(rec.fire)

	table.Schedule("a", 1, 10*time.Millisecond)
	table.Schedule("b", 2, 10*time.Millisecond)
	table.Schedule("a", 3, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(rec.get("a")) == 1 && len(rec.get("b")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{3}, rec.get("a"))
	assert.Equal(t, []int{2}, rec.get("b"))
}

func TestCancel(t *testing.T) {
	rec := newRecorder()
	table := NewTable(rec.fire)

	table.Schedule("a", 7, 20*time.Millisecond)
	payload, ok := table.Cancel("a")
	assert.True(t, ok)
	assert.Equal(t, 7, payload)

	_, ok = table.Cancel("a")
	assert.False(t, ok)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.get("a"))
}

func TestFlush(t *testing.T) {
	rec := newRecorder()
	table := NewTable(rec.fire)

	table.Schedule("a", 1, time.Hour)
	table.Schedule("b", 2, time.Hour)

	assert.Equal(t, 2, table.Flush())
	assert.Equal(t, []int{1}, rec.get("a"))
	assert.Equal(t, []int{2}, rec.get("b"))
	assert.Equal(t, 0, table.Len())

	// Still usable after a flush
	assert.True(t, table.Schedule("a", 3, time.Hour))
	assert.Equal(t, 1, table.Flush())
	assert.Equal(t, []int{1, 3}, rec.get("a"))
}

func TestStop(t *testing.T) {
	rec := newRecorder()
	table := NewTable(rec.fire)

	table.Schedule("a", 1, time.Hour)
	assert.Equal(t, 1, table.Stop())
	assert.Equal(t, []int{1}, rec.get("a"))

	assert.False(t, table.Schedule("a", 2, time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{1}, rec.get("a"))
}

func TestFireMayReschedule(t *testing.T) {
	var table *Table[string, int]
	done := make(chan int, 1)
	table = NewTable(func(key string, payload int) {
		if payload < 3 {
			table.Schedule(key, payload+1, time.Millisecond)
			return
		}
		done <- payload
	})

	table.Schedule("a", 1, time.Millisecond)
	select {
	case got := <-done:
		assert.Equal(t, 3, got)
	case <-time.After(time.Second):
		t.Fatal("timer chain did not complete")
	}
}
