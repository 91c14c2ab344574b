package goNameAuth

import (
	"context"
	"sync/atomic"
)

// Attempt is a login running in the background, returned by Engine.Start.
// All methods are safe for concurrent use.
type Attempt struct {
	id     string
	name   string
	buffer int
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	dropped atomic.Uint64

	// result and err are written once before done is closed.
	result *LoginResult
	err    error
}

// newAttempt sizes Events one past buffer so EventFinished always fits.
func newAttempt(id, name string, buffer int, cancel context.CancelFunc) *Attempt {
	if buffer < 1 {
		buffer = 1
	}
	return &Attempt{
		id:     id,
		name:   name,
		buffer: buffer,
		events: make(chan Event, buffer+1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the attempt identifier used in events, audit records and errors.
func (a *Attempt) ID() string { return a.id }

// Name returns the normalized name being logged in.
func (a *Attempt) Name() string { return a.name }

// Events streams progress. EventFinished is always delivered, and the channel
// is closed after it. Other events that do not fit in the buffer are dropped
// and counted by DroppedEvents.
func (a *Attempt) Events() <-chan Event { return a.events }

// DroppedEvents reports how many events did not fit in the Events buffer.
func (a *Attempt) DroppedEvents() uint64 { return a.dropped.Load() }

// Cancel stops the attempt. It may be called any number of times, before or
// after the attempt finished.
func (a *Attempt) Cancel() { a.cancel() }

// Done is closed once the attempt reached a terminal outcome.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Wait blocks until the attempt finishes or ctx ends. Ending ctx does not
// cancel the attempt.
func (a *Attempt) Wait(ctx context.Context) (*LoginResult, error) {
	select {
	case <-a.done:
		return a.result, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// publish is only called from the attempt's run goroutine. Progress events
// never occupy the last slot, so the send of EventFinished cannot block.
func (a *Attempt) publish(ev Event) {
	if ev.Kind == EventFinished {
		a.events <- ev
		return
	}
	if len(a.events) >= a.buffer {
		a.dropped.Add(1)
		return
	}
	a.events <- ev
}

func (a *Attempt) finish(result *LoginResult, err error) {
	a.result = result
	a.err = err
	close(a.events)
	close(a.done)
}
