// Package capture owns the depth sensor: the driver abstraction, the open
// session with its calibration-derived transform model, and the frame pair
// type whose native buffers move through the pipeline.
package capture

import (
	"time"

	"github.com/pkg/errors"

	"pointcam/depth/transform"
)

var (
	// ErrNoDevice is returned from Open when no devices are attached.
	ErrNoDevice = errors.New("no depth device found")
	// ErrTimeout is returned from a capture call when no synchronized pair
	// became available within the timeout. Routine under capture jitter.
	ErrTimeout = errors.New("capture timed out")
	// ErrClosed is returned from capture calls on a closed session.
	ErrClosed = errors.New("capture session is closed")
)

// Config selects the device modes for a session. Supplied once at open; no
// runtime reconfiguration.
type Config struct {
	ColorWidth  int
	ColorHeight int
	// DepthMode selects the depth camera field of view, "narrow" or "wide".
	DepthMode string
	// Synchronized requires each capture to carry a color+depth pair taken
	// at the same instant; unpaired captures are not delivered.
	Synchronized bool
}

func (c Config) check() error {
	if c.ColorWidth <= 0 || c.ColorHeight <= 0 {
		return errors.Errorf("invalid color resolution %dx%d", c.ColorWidth, c.ColorHeight)
	}
	switch c.DepthMode {
	case "narrow", "wide":
	default:
		return errors.Errorf("unknown depth mode %q", c.DepthMode)
	}
	return nil
}

// RawCapture is one capture straight off the device: the BGRA color image
// and the raw depth image (uint16 little endian millimeter samples at depth
// camera resolution), both in driver-owned memory.
type RawCapture struct {
	Color *Buffer
	Depth *Buffer
	Time  time.Time
}

// Device is a single opened depth sensor. Implementations are not safe for
// concurrent use; exactly one goroutine drives a device.
type Device interface {
	// Start begins streaming the cameras in the configured modes.
	Start(cfg Config) error

	// Calibration reports the factory calibration for the started modes.
	Calibration() (transform.Calibration, error)

	// Capture blocks up to timeout for the next synchronized pair and
	// consumes exactly one frame from the device queue. Returns ErrTimeout
	// when no pair was ready in time.
	Capture(timeout time.Duration) (*RawCapture, error)

	// Stop halts camera streaming. Close releases the device handle.
	Stop()
	Close() error
}

// Driver enumerates attached devices and opens them by index.
type Driver interface {
	DeviceCount() int
	Open(index int) (Device, error)
}

// NullDriver enumerates no devices. It stands in for a vendor SDK backend
// on builds without one, so hosts fall through the no-device path and run
// with the pipeline inert.
type NullDriver struct{}

func (NullDriver) DeviceCount() int { return 0 }

func (NullDriver) Open(int) (Device, error) { return nil, ErrNoDevice }
