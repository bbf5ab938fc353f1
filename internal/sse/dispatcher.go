package sse

import "log"

type task struct {
	userID uint64
	event  Event
}

// Dispatcher is the façade background work uses to push events without
// blocking. Tasks run on a fixed pool of workers over a bounded queue;
// when the queue is saturated the event is dropped with a log line
// rather than stalling the caller. Failures never propagate back.
type Dispatcher struct {
	registry *Registry
	tasks    chan task
	stop     chan struct{}
}

// NewDispatcher starts workers goroutines draining a queue of the given
// size. Zero or negative arguments fall back to small defaults.
func NewDispatcher(registry *Registry, workers, queue int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 64
	}
	d := &Dispatcher{
		registry: registry,
		tasks:    make(chan task, queue),
		stop:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	for {
		select {
		case t := <-d.tasks:
			d.registry.Emit(t.userID, t.event)
		case <-d.stop:
			return
		}
	}
}

// Notify queues a push event for the user and returns immediately. The
// synchronous caller (a chat tool, an entry write) is never blocked and
// never sees a delivery failure.
func (d *Dispatcher) Notify(userID uint64, name string, data any) {
	select {
	case d.tasks <- task{userID: userID, event: Event{Name: name, Data: data}}:
	default:
		log.Printf("sse: dispatch queue full, dropping event %q for user %d", name, userID)
	}
}

// Close stops the workers. Queued tasks that have not started are dropped.
func (d *Dispatcher) Close() {
	close(d.stop)
}
