package stream

import (
	"errors"
	"sync"
)

// ErrStreamClosed is returned by Emit after the stream has terminated or the
// consumer has stopped reading.
var ErrStreamClosed = errors.New("stream closed")

// Emitter is the bounded bridge between a session and its consumer. Emit
// blocks when the consumer is slow instead of dropping events, so the
// ordering contract survives back-pressure. Exactly one terminal event
// (done or error) ends the stream; the events channel is closed right after
// it and nothing is accepted afterwards.
//
// Producer protocol: any number of concurrent Emit calls, then exactly one
// Done or Fail once all Emit calls have returned.
type Emitter struct {
	events chan Event
	stop   chan struct{}

	stopOnce sync.Once
	mu       sync.Mutex
	terminal bool
}

// NewEmitter constructs an emitter with the given channel buffer.
func NewEmitter(buffer int) *Emitter {
	if buffer < 1 {
		buffer = 1
	}
	return &Emitter{
		events: make(chan Event, buffer),
		stop:   make(chan struct{}),
	}
}

// Events returns the consumer side of the stream. The channel is closed
// after the terminal event; a close without a preceding terminal event means
// the consumer itself stopped the stream.
func (e *Emitter) Events() <-chan Event { return e.events }

// Emit pushes a non-terminal event, blocking while the buffer is full.
// It fails once the stream is terminated or stopped.
func (e *Emitter) Emit(ev Event) error {
	e.mu.Lock()
	terminal := e.terminal
	e.mu.Unlock()
	if terminal {
		return ErrStreamClosed
	}
	select {
	case <-e.stop:
		return ErrStreamClosed
	case e.events <- ev:
		return nil
	}
}

// Done terminates the stream successfully.
func (e *Emitter) Done(finalText string, toolsUsed []string) {
	e.finish(Done(finalText, toolsUsed))
}

// Fail terminates the stream with an error event.
func (e *Emitter) Fail(message string) {
	e.finish(Error(message))
}

// Stop is called by the consumer when it can no longer accept events (e.g.
// the connection dropped). Pending and future Emit calls fail, which aborts
// the producing session. No terminal event is delivered.
func (e *Emitter) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Emitter) finish(ev Event) {
	e.mu.Lock()
	if e.terminal {
		e.mu.Unlock()
		return
	}
	e.terminal = true
	e.mu.Unlock()

	select {
	case <-e.stop: // consumer gone, drop the terminal event
	case e.events <- ev:
	}
	close(e.events)
}

// Collector is a Sink that buffers all events in memory. It backs the
// non-streaming chat path and tests.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the sink interface.
func (c *Collector) Emit(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of the collected events in emission order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]Event, len(c.events))
	copy(events, c.events)
	return events
}

// Discard is a Sink that drops every event.
type Discard struct{}

// Emit implements the sink interface.
func (Discard) Emit(Event) error { return nil }
