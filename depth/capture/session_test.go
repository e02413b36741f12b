package capture

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointcam/depth/transform"
)

func testConfig() Config {
	return Config{
		ColorWidth:   8,
		ColorHeight:  6,
		DepthMode:    "narrow",
		Synchronized: true,
	}
}

func stubCalibration() transform.Calibration {
	return transform.Calibration{
		Color: transform.Intrinsics{
			Width: 8, Height: 6,
			Fx: 10, Fy: 10, Ppx: 4, Ppy: 3,
		},
		Depth: transform.Intrinsics{
			Width: 8, Height: 6,
			Fx: 10, Fy: 10, Ppx: 4, Ppy: 3,
		},
		DepthToColor: transform.IdentityExtrinsics(),
	}
}

// stubDevice scripts device behavior for session tests and tracks buffer
// release accounting.
type stubDevice struct {
	startErr error
	calErr   error
	capture  func(timeout time.Duration) (*RawCapture, error)

	started bool
	stopped bool
	closed  bool
	live    int
}

func (d *stubDevice) Start(cfg Config) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.started = true
	return nil
}

func (d *stubDevice) Calibration() (transform.Calibration, error) {
	if d.calErr != nil {
		return transform.Calibration{}, d.calErr
	}
	return stubCalibration(), nil
}

func (d *stubDevice) Capture(timeout time.Duration) (*RawCapture, error) {
	return d.capture(timeout)
}

func (d *stubDevice) Stop()        { d.stopped = true }
func (d *stubDevice) Close() error { d.closed = true; return nil }

func (d *stubDevice) buffer(b []byte) *Buffer {
	d.live++
	return NewBuffer(b, func() error {
		d.live--
		return nil
	})
}

// rawPair builds a capture matching stubCalibration: 8x6 BGRA color and an
// 8x6 uint16 depth image with the given millimeter value everywhere.
func (d *stubDevice) rawPair(z uint16) *RawCapture {
	color := make([]byte, 8*6*4)
	depthb := make([]byte, 8*6*2)
	for i := 0; i < 8*6; i++ {
		binary.LittleEndian.PutUint16(depthb[i*2:], z)
	}
	return &RawCapture{
		Color: d.buffer(color),
		Depth: d.buffer(depthb),
		Time:  time.Now(),
	}
}

type stubDriver struct {
	dev   Device
	count int
}

func (d *stubDriver) DeviceCount() int { return d.count }

func (d *stubDriver) Open(index int) (Device, error) {
	if d.dev == nil {
		return nil, errors.New("open failed")
	}
	return d.dev, nil
}

func TestOpenNoDevice(t *testing.T) {
	_, err := Open(NullDriver{}, testConfig())
	require.ErrorIs(t, err, ErrNoDevice)
}

func TestOpenBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DepthMode = "panoramic"
	_, err := Open(&stubDriver{dev: &stubDevice{}, count: 1}, cfg)
	require.Error(t, err)

	cfg = testConfig()
	cfg.ColorWidth = 0
	_, err = Open(&stubDriver{dev: &stubDevice{}, count: 1}, cfg)
	require.Error(t, err)
}

func TestOpenDeviceFailure(t *testing.T) {
	_, err := Open(&stubDriver{count: 1}, testConfig())
	require.Error(t, err)
}

func TestOpenStartFailureClosesDevice(t *testing.T) {
	dev := &stubDevice{startErr: errors.New("cameras busy")}
	_, err := Open(&stubDriver{dev: dev, count: 1}, testConfig())
	require.Error(t, err)
	assert.True(t, dev.closed)
}

func TestOpenCalibrationFailureClosesDevice(t *testing.T) {
	dev := &stubDevice{calErr: errors.New("calibration unreadable")}
	_, err := Open(&stubDriver{dev: dev, count: 1}, testConfig())
	require.Error(t, err)
	assert.True(t, dev.stopped)
	assert.True(t, dev.closed)
}

func TestCaptureOne(t *testing.T) {
	dev := &stubDevice{}
	dev.capture = func(time.Duration) (*RawCapture, error) {
		return dev.rawPair(1000), nil
	}
	s, err := Open(&stubDriver{dev: dev, count: 1}, testConfig())
	require.NoError(t, err)
	defer s.Close()

	f, err := s.CaptureOne(time.Second / 15)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Width)
	assert.Equal(t, 6, f.Height)
	assert.EqualValues(t, 1, f.Seq)
	assert.Len(t, f.Color(), 8*6*4)
	assert.Len(t, f.Cloud(), transform.CloudBytes(8, 6))

	// The depth buffer never leaves the call; only the color buffer stays
	// live inside the frame.
	assert.Equal(t, 1, dev.live)
	f.Release()
	assert.Equal(t, 0, dev.live)

	f2, err := s.CaptureOne(time.Second / 15)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f2.Seq)
	f2.Release()
}

func TestCaptureOneTimeout(t *testing.T) {
	dev := &stubDevice{}
	dev.capture = func(time.Duration) (*RawCapture, error) {
		return nil, ErrTimeout
	}
	s, err := Open(&stubDriver{dev: dev, count: 1}, testConfig())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CaptureOne(time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, dev.live)
}

func TestCaptureOneTransformFailureReleasesBuffers(t *testing.T) {
	dev := &stubDevice{}
	dev.capture = func(time.Duration) (*RawCapture, error) {
		raw := dev.rawPair(1000)
		// Truncated depth image makes registration fail after acquisition.
		raw.Depth.Free()
		raw.Depth = dev.buffer(make([]byte, 10))
		return raw, nil
	}
	s, err := Open(&stubDriver{dev: dev, count: 1}, testConfig())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CaptureOne(time.Millisecond)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, dev.live)
}

func TestCaptureOneBadColorSizeReleasesBuffers(t *testing.T) {
	dev := &stubDevice{}
	dev.capture = func(time.Duration) (*RawCapture, error) {
		raw := dev.rawPair(1000)
		raw.Color.Free()
		raw.Color = dev.buffer(make([]byte, 16))
		return raw, nil
	}
	s, err := Open(&stubDriver{dev: dev, count: 1}, testConfig())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CaptureOne(time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 0, dev.live)
}

func TestCaptureAfterClose(t *testing.T) {
	dev := &stubDevice{}
	dev.capture = func(time.Duration) (*RawCapture, error) {
		return dev.rawPair(1000), nil
	}
	s, err := Open(&stubDriver{dev: dev, count: 1}, testConfig())
	require.NoError(t, err)

	s.Close()
	_, err = s.CaptureOne(time.Millisecond)
	require.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	s.Close()
	assert.True(t, dev.stopped)
	assert.True(t, dev.closed)
}

func TestFakeDriverPipeline(t *testing.T) {
	dev := &fakeDevice{period: time.Millisecond}
	drv := &stubDriver{dev: dev, count: 1}

	cfg := Config{ColorWidth: 64, ColorHeight: 48, DepthMode: "narrow", Synchronized: true}
	s, err := Open(drv, cfg)
	require.NoError(t, err)
	defer s.Close()

	var f *Frame
	for {
		f, err = s.CaptureOne(50 * time.Millisecond)
		if errors.Is(err, ErrTimeout) {
			continue
		}
		require.NoError(t, err)
		break
	}
	assert.Equal(t, 64, f.Width)
	assert.Equal(t, 48, f.Height)
	assert.Len(t, f.Color(), 64*48*4)
	assert.Len(t, f.Cloud(), transform.CloudBytes(64, 48))

	f.Release()
	assert.EqualValues(t, 0, dev.Outstanding())
}

func TestFakeDeviceTiming(t *testing.T) {
	dev := &fakeDevice{period: time.Hour}
	require.NoError(t, dev.Start(Config{ColorWidth: 8, ColorHeight: 6, DepthMode: "narrow", Synchronized: true}))

	// The first capture is available immediately; the next is a full
	// period out, so a short wait times out.
	raw, err := dev.Capture(time.Millisecond)
	require.NoError(t, err)
	raw.Color.Free()
	raw.Depth.Free()

	_, err = dev.Capture(time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.EqualValues(t, 0, dev.Outstanding())
}

func TestFrameDoubleReleasePanics(t *testing.T) {
	f := NewFrame(NewBuffer(make([]byte, 4), nil), []byte{}, 1, 1, 1, time.Now())
	f.Release()
	assert.Panics(t, func() { f.Release() })
}

func TestFrameReadAfterReleasePanics(t *testing.T) {
	f := NewFrame(NewBuffer(make([]byte, 4), nil), []byte{}, 1, 1, 1, time.Now())
	f.Release()
	assert.Panics(t, func() { f.Color() })
	assert.Panics(t, func() { f.Cloud() })
}

func TestBufferDoubleFreePanics(t *testing.T) {
	b := NewBuffer(make([]byte, 4), nil)
	b.Free()
	assert.Panics(t, func() { b.Free() })
	assert.Panics(t, func() { b.Data() })
}

func TestBufferFreeErrorIgnored(t *testing.T) {
	b := NewBuffer(make([]byte, 4), func() error {
		return errors.New("driver free failed")
	})
	assert.NotPanics(t, func() { b.Free() })
}
