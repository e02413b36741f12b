package depth

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pointcam/depth/capture"
	"pointcam/util"
)

// State is the lifecycle of a capture loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const (
	// DefaultCaptureTimeout matches one period of a 15 FPS sensor, so a
	// timeout is the routine "no new frame yet" outcome, not an error.
	DefaultCaptureTimeout = time.Second / 15
	// DefaultRetrySleep is the pause after a capture timeout before the
	// next attempt.
	DefaultRetrySleep = 100 * time.Millisecond
)

// Session is the capture half driven by the loop. *capture.Session
// implements it.
type Session interface {
	CaptureOne(timeout time.Duration) (*capture.Frame, error)
}

type LoopOptions struct {
	CaptureTimeout time.Duration
	RetrySleep     time.Duration
}

// Loop repeatedly captures from a session on a dedicated goroutine and
// publishes every frame into the slot. Capture timeouts are retried after a
// short sleep. Any other capture error is fatal: the loop stops and the
// error is surfaced from Stop and Err.
type Loop struct {
	session Session
	slot    *Slot
	opts    LoopOptions

	stop  *util.Event
	done  *util.Event
	state int32

	mu  sync.Mutex
	err error
}

func NewLoop(session Session, slot *Slot, opts LoopOptions) *Loop {
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	if opts.RetrySleep <= 0 {
		opts.RetrySleep = DefaultRetrySleep
	}
	return &Loop{
		session: session,
		slot:    slot,
		opts:    opts,
		stop:    util.NewEvent(),
		done:    util.NewEvent(),
		state:   int32(StateIdle),
	}
}

// Start spawns the capture goroutine. Valid only once, from idle.
func (l *Loop) Start() error {
	if !atomic.CompareAndSwapInt32(&l.state, int32(StateIdle), int32(StateRunning)) {
		return errors.Errorf("capture loop cannot start from state %q", l.State())
	}
	loopRunning.Set(1)
	go l.run()
	return nil
}

// Stop signals termination, unblocks the loop if it is parked in a publish,
// and waits for the goroutine to exit. Safe to call concurrently with an
// in-flight capture; worst case it waits out one capture timeout. Stopping
// a never-started loop is a no-op. Returns the loop's fatal error, if any.
func (l *Loop) Stop() error {
	if atomic.CompareAndSwapInt32(&l.state, int32(StateIdle), int32(StateStopped)) {
		return nil
	}
	atomic.CompareAndSwapInt32(&l.state, int32(StateRunning), int32(StateStopping))
	l.stop.Notify()
	l.done.Wait()
	return l.Err()
}

func (l *Loop) State() State {
	return State(atomic.LoadInt32(&l.state))
}

// Err returns the fatal capture error that stopped the loop, or nil.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed once the loop goroutine has fully exited, whether from
// Stop or from a fatal error.
func (l *Loop) Done() <-chan struct{} {
	return l.done.Done()
}

func (l *Loop) run() {
	defer func() {
		atomic.StoreInt32(&l.state, int32(StateStopped))
		loopRunning.Set(0)
		l.done.Notify()
	}()

	// Termination is checked once per iteration, so shutdown latency is
	// bounded by one capture timeout plus one publish wait.
	for !l.stop.HasBeenNotified() {
		f, err := l.session.CaptureOne(l.opts.CaptureTimeout)
		if errors.Is(err, capture.ErrTimeout) {
			captureTimeouts.Inc()
			select {
			case <-l.stop.Done():
				return
			case <-time.After(l.opts.RetrySleep):
			}
			continue
		}
		if err != nil {
			captureFailures.Inc()
			log.Errorf("Capture failed, stopping capture loop: %v", err)
			l.setErr(err)
			return
		}
		framesCaptured.Inc()

		if err := l.slot.Publish(f, l.stop.Done()); err != nil {
			return
		}
		framesPublished.Inc()
	}
}

func (l *Loop) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}
