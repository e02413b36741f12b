package capture

import (
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"pointcam/depth/transform"
)

// FakeDriver provides synthetic depth devices so the full pipeline can run,
// and be exercised in tests, without hardware attached.
type FakeDriver struct {
	Devices int
	// FramePeriod is the simulated sensor frame interval.
	FramePeriod time.Duration
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		Devices:     1,
		FramePeriod: time.Second / 30,
	}
}

func (d *FakeDriver) DeviceCount() int {
	return d.Devices
}

func (d *FakeDriver) Open(index int) (Device, error) {
	if index < 0 || index >= d.Devices {
		return nil, errors.Errorf("no device at index %d", index)
	}
	return &fakeDevice{period: d.FramePeriod}, nil
}

// fakeDevice synthesizes a scrolling gradient color image over a sloped
// depth plane, paced at the configured frame interval so capture timeouts
// occur the way they do against real hardware.
type fakeDevice struct {
	period  time.Duration
	cfg     Config
	started bool
	next    time.Time
	counter uint64

	outstanding int64
}

func depthSize(mode string) (int, int) {
	if mode == "wide" {
		return 512, 512
	}
	return 320, 288
}

func (d *fakeDevice) Start(cfg Config) error {
	if d.started {
		return errors.New("fake device already started")
	}
	if err := cfg.check(); err != nil {
		return err
	}
	d.cfg = cfg
	d.started = true
	return nil
}

func (d *fakeDevice) Calibration() (transform.Calibration, error) {
	if !d.started {
		return transform.Calibration{}, errors.New("fake device not started")
	}
	cw, ch := d.cfg.ColorWidth, d.cfg.ColorHeight
	dw, dh := depthSize(d.cfg.DepthMode)
	ext := transform.IdentityExtrinsics()
	// 32mm horizontal baseline between the depth and color cameras.
	ext.Translation = r3.Vector{X: -32}
	return transform.Calibration{
		Color: transform.Intrinsics{
			Width: cw, Height: ch,
			Fx: float64(cw), Fy: float64(cw),
			Ppx: float64(cw) / 2, Ppy: float64(ch) / 2,
		},
		Depth: transform.Intrinsics{
			Width: dw, Height: dh,
			Fx: float64(dw), Fy: float64(dw),
			Ppx: float64(dw) / 2, Ppy: float64(dh) / 2,
		},
		DepthToColor: ext,
	}, nil
}

func (d *fakeDevice) Capture(timeout time.Duration) (*RawCapture, error) {
	if !d.started {
		return nil, errors.New("fake device not started")
	}
	now := time.Now()
	if d.next.IsZero() {
		d.next = now
	}
	if wait := d.next.Sub(now); wait > timeout {
		time.Sleep(timeout)
		return nil, ErrTimeout
	} else if wait > 0 {
		time.Sleep(wait)
	}
	d.next = d.next.Add(d.period)
	d.counter++

	return &RawCapture{
		Color: d.newBuffer(d.renderColor()),
		Depth: d.newBuffer(d.renderDepth()),
		Time:  time.Now(),
	}, nil
}

func (d *fakeDevice) renderColor() []byte {
	w, h := d.cfg.ColorWidth, d.cfg.ColorHeight
	b := make([]byte, w*h*4)
	shift := int(d.counter)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 4
			b[o] = byte((x + shift) * 255 / w)   // B
			b[o+1] = byte(y * 255 / h)           // G
			b[o+2] = byte((x + y + shift) % 256) // R
			b[o+3] = 255                         // A
		}
	}
	return b
}

func (d *fakeDevice) renderDepth() []byte {
	w, h := depthSize(d.cfg.DepthMode)
	b := make([]byte, w*h*2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// A plane sloping away with distance, with a band of invalid
			// samples down the middle.
			z := uint16(600 + x*2)
			if x > w*2/5 && x < w*3/5 && y%7 == 0 {
				z = 0
			}
			o := (y*w + x) * 2
			b[o] = byte(z)
			b[o+1] = byte(z >> 8)
		}
	}
	return b
}

func (d *fakeDevice) newBuffer(b []byte) *Buffer {
	atomic.AddInt64(&d.outstanding, 1)
	return NewBuffer(b, func() error {
		atomic.AddInt64(&d.outstanding, -1)
		return nil
	})
}

// Outstanding reports buffers handed out and not yet freed.
func (d *fakeDevice) Outstanding() int64 {
	return atomic.LoadInt64(&d.outstanding)
}

func (d *fakeDevice) Stop() {
	d.started = false
}

func (d *fakeDevice) Close() error {
	return nil
}
