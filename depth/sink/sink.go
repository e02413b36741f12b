package sink

// Consumer receives the contents of a drained frame once per render tick.
// The byte views are only valid until the frame is released after the call
// returns, so implementations must copy or upload before returning and
// must not retain the slices.
type Consumer interface {
	OnFrame(color, cloud []byte, width, height int)
}

// Multi fans a drained frame out to several consumers in order.
type Multi []Consumer

func (m Multi) OnFrame(color, cloud []byte, width, height int) {
	for _, c := range m {
		c.OnFrame(color, cloud, width, height)
	}
}
