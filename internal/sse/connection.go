// Package sse implements the per-user push-notification channel: live
// connection handles, the per-user registry they are tracked in, and the
// background dispatcher used by fire-and-forget notification tasks.
package sse

import (
	"errors"
	"sync"
	"time"
)

// IdleTimeout is how long a connection may stay open without the client
// reading before it is forced closed. Closure converges on
// unregistration in the handler's exit path.
const IdleTimeout = 10 * time.Minute

// Event is a named push event with an arbitrary JSON-encodable body.
type Event struct {
	Name string
	Data any
}

// EventEntriesCreated is emitted after the chat assistant registers
// financial entries on the user's behalf.
const EventEntriesCreated = "entries_created"

var ErrConnClosed = errors.New("connection closed")

// Connection is one live subscriber. Events are delivered through a
// buffered channel; a send that finds the buffer full or the connection
// closed fails, which makes the registry drop the connection during
// fan-out instead of blocking the emitter.
type Connection struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewConnection returns a connection with the given event buffer size.
func NewConnection(buffer int) *Connection {
	if buffer <= 0 {
		buffer = 8
	}
	return &Connection{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Events is the stream the transport handler drains.
func (c *Connection) Events() <-chan Event { return c.events }

// Done is closed exactly once when the connection is closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close marks the connection dead. Safe to call from any callback,
// any number of times.
func (c *Connection) Close() {
	c.once.Do(func() { close(c.done) })
}

// Send queues one event. It never blocks: a closed connection or a full
// buffer (a client that stopped reading) returns ErrConnClosed so the
// caller can self-heal by removing the connection.
func (c *Connection) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrConnClosed
	}
}
