package depth

// CaptureSession adds session teardown to the loop's capture contract.
// *capture.Session implements it.
type CaptureSession interface {
	Session
	Close()
}

// Pipeline ties a session, a capture loop, and a handoff slot together
// behind the host's lifecycle hooks. The host calls Start once, drains
// Slot() from its render tick, and calls Stop once on the way out; Stop
// without a prior Start is a no-op.
type Pipeline struct {
	session CaptureSession
	slot    *Slot
	loop    *Loop
}

func NewPipeline(session CaptureSession, opts LoopOptions) *Pipeline {
	slot := NewSlot()
	return &Pipeline{
		session: session,
		slot:    slot,
		loop:    NewLoop(session, slot, opts),
	}
}

// Slot returns the handoff slot the consumer polls.
func (p *Pipeline) Slot() *Slot {
	return p.slot
}

func (p *Pipeline) Start() error {
	return p.loop.Start()
}

// Stop signals the loop, joins it, releases any undrained frame, and closes
// the session. Returns the loop's fatal capture error, if any.
func (p *Pipeline) Stop() error {
	if p.loop.State() == StateIdle {
		p.loop.Stop()
		return nil
	}
	err := p.loop.Stop()
	p.slot.Close()
	p.session.Close()
	return err
}

func (p *Pipeline) State() State {
	return p.loop.State()
}

func (p *Pipeline) Err() error {
	return p.loop.Err()
}

// Done is closed when the capture loop exits for any reason; hosts watch it
// to notice a fatal capture failure without polling.
func (p *Pipeline) Done() <-chan struct{} {
	return p.loop.Done()
}
