package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, conn *Connection) Event {
	t.Helper()
	select {
	case ev := <-conn.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestDispatcher_DeliversInBackground(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	d := NewDispatcher(r, 2, 8)
	defer d.Close()

	conn := NewConnection(4)
	r.Register(42, conn)

	d.Notify(42, "entries_created", []int{1, 2})

	ev := waitForEvent(t, conn)
	require.Equal(t, "entries_created", ev.Name)
	require.Equal(t, []int{1, 2}, ev.Data)
}

// Notify never blocks, even with no workers draining the queue.
func TestDispatcher_SaturatedQueueDrops(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	d := &Dispatcher{registry: r, tasks: make(chan task, 1), stop: make(chan struct{})}
	defer close(d.stop)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Notify(1, "ev", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}
