package capture

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pointcam/depth/transform"
)

// Session owns one open device and the transform model derived from its
// calibration. The device handle is exclusive: at most one Session may be
// open for a given device at a time.
//
// CaptureOne is driven from a single capture goroutine; Close may be called
// from any goroutine and is idempotent.
type Session struct {
	dev   Device
	model *transform.Model
	cfg   Config
	seq   uint64

	mu     sync.Mutex
	closed bool
}

// Open enumerates attached devices, opens the first one, starts its cameras
// in the configured modes, and builds the transform model from the device
// calibration. Returns ErrNoDevice when nothing is attached.
func Open(driver Driver, cfg Config) (*Session, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if driver.DeviceCount() == 0 {
		return nil, ErrNoDevice
	}
	dev, err := driver.Open(0)
	if err != nil {
		return nil, errors.Wrap(err, "open device")
	}
	if err := dev.Start(cfg); err != nil {
		closeDevice(dev)
		return nil, errors.Wrap(err, "start cameras")
	}
	cal, err := dev.Calibration()
	if err != nil {
		dev.Stop()
		closeDevice(dev)
		return nil, errors.Wrap(err, "read calibration")
	}
	model, err := transform.NewModel(cal)
	if err != nil {
		dev.Stop()
		closeDevice(dev)
		return nil, errors.Wrap(err, "build transform model")
	}
	log.Infof("Opened depth device: color %dx%d, depth mode %q", cfg.ColorWidth, cfg.ColorHeight, cfg.DepthMode)
	return &Session{
		dev:   dev,
		model: model,
		cfg:   cfg,
	}, nil
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() Config {
	return s.cfg
}

// CaptureOne blocks until a synchronized color+depth pair is available or
// timeout elapses, then registers the depth image into the color camera's
// pixel grid and unprojects it into a point cloud. Exactly one frame is
// consumed from the device queue per call.
//
// The raw depth buffer and any intermediate transform output never leave
// this call; they are released on every exit path. On success the returned
// frame owns the color buffer and the derived cloud.
func (s *Session) CaptureOne(timeout time.Duration) (*Frame, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	raw, err := s.dev.Capture(timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return nil, err
		}
		return nil, errors.Wrap(err, "device capture")
	}
	defer raw.Depth.Free()

	published := false
	defer func() {
		if !published {
			raw.Color.Free()
		}
	}()

	if want := s.cfg.ColorWidth * s.cfg.ColorHeight * 4; raw.Color.Len() != want {
		return nil, errors.Errorf("color image is %d bytes, want %d", raw.Color.Len(), want)
	}
	depth, err := decodeDepth(raw.Depth.Data())
	if err != nil {
		return nil, err
	}
	registered, err := s.model.RegisterDepth(depth)
	if err != nil {
		return nil, errors.Wrap(err, "register depth to color")
	}
	cloud, err := s.model.Unproject(registered)
	if err != nil {
		return nil, errors.Wrap(err, "unproject to cloud")
	}

	s.seq++
	published = true
	return NewFrame(raw.Color, cloud, s.cfg.ColorWidth, s.cfg.ColorHeight, s.seq, raw.Time), nil
}

// Close stops camera streaming and releases the device handle. Safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.dev.Stop()
	closeDevice(s.dev)
	log.Infof("Closed depth device")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func closeDevice(dev Device) {
	if err := dev.Close(); err != nil {
		log.Errorf("Failed to close depth device: %v", err)
	}
}

func decodeDepth(b []byte) ([]uint16, error) {
	if len(b)%2 != 0 {
		return nil, errors.Errorf("depth image has odd byte count %d", len(b))
	}
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return out, nil
}
