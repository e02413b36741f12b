package util

import (
	"sync"
)

// Event is a one-shot notification. It starts unset, can be set exactly once
// from any goroutine, and can be waited on or selected on by any number of
// goroutines.
type Event struct {
	once sync.Once
	c    chan struct{}
}

func NewEvent() *Event {
	return &Event{
		c: make(chan struct{}),
	}
}

// Notify sets the event. Subsequent calls are no-ops.
func (e *Event) Notify() {
	e.once.Do(func() {
		close(e.c)
	})
}

// Wait blocks until the event is set.
func (e *Event) Wait() {
	<-e.c
}

// Done returns a channel that is closed once the event is set, for use in
// select statements.
func (e *Event) Done() <-chan struct{} {
	return e.c
}

func (e *Event) HasBeenNotified() bool {
	select {
	case <-e.c:
		return true
	default:
		return false
	}
}
