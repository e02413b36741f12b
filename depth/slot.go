// Package depth contains the capture pipeline core: a capture loop driving
// a sensor session on its own goroutine, and the single-slot handoff that
// throttles it to the consuming render loop's pace.
package depth

import (
	"sync"

	"github.com/pkg/errors"

	"pointcam/depth/capture"
)

var (
	// ErrSlotClosed is returned from Publish after the slot is closed.
	ErrSlotClosed = errors.New("handoff slot is closed")
	// ErrPublishCanceled is returned from Publish when the cancel signal
	// fires while waiting for the consumer.
	ErrPublishCanceled = errors.New("publish canceled")
)

// Slot is a single-capacity handoff between exactly one producer and one
// consumer. Publish parks the producer while a previously published frame
// is still undrained, which throttles capture to consumer speed and bounds
// the pipeline to one frame in flight. TryDrain never blocks, so a render
// loop can poll once per tick and move on either way.
//
// Ownership of a frame transfers whole at the Publish and TryDrain
// boundaries; the two sides never touch a frame concurrently.
type Slot struct {
	ch     chan *capture.Frame
	closed chan struct{}
	once   sync.Once
}

func NewSlot() *Slot {
	return &Slot{
		ch:     make(chan *capture.Frame, 1),
		closed: make(chan struct{}),
	}
}

// Publish hands a frame to the consumer side. If the previous frame has not
// been drained yet it blocks until it is, or until cancel fires or the slot
// is closed; on either of those the frame is released here and an error
// returned, so a departing consumer cannot strand the producer.
func (s *Slot) Publish(f *capture.Frame, cancel <-chan struct{}) error {
	select {
	case <-s.closed:
		f.Release()
		return ErrSlotClosed
	default:
	}
	select {
	case s.ch <- f:
		return nil
	case <-cancel:
		f.Release()
		framesDiscarded.Inc()
		return ErrPublishCanceled
	case <-s.closed:
		f.Release()
		framesDiscarded.Inc()
		return ErrSlotClosed
	}
}

// TryDrain removes and returns the published frame, if any. Ownership moves
// to the caller, which must Release the frame when done with it.
func (s *Slot) TryDrain() (*capture.Frame, bool) {
	select {
	case f := <-s.ch:
		return f, true
	default:
		return nil, false
	}
}

// Close releases any undrained frame and fails all future publishes. Call
// only once the producer has stopped publishing; a publish racing Close
// could otherwise strand its frame.
func (s *Slot) Close() {
	s.once.Do(func() {
		close(s.closed)
		select {
		case f := <-s.ch:
			f.Release()
			framesDiscarded.Inc()
		default:
		}
	})
}
