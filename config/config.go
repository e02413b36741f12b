package config

import (
	"time"

	"github.com/pkg/errors"
)

// Config is the host configuration. Capture settings are read once when the
// device session is opened; changing them requires a restart. The file is
// still watched so later additions can pick up edits live.
type Config struct {
	// ColorWidth and ColorHeight select the color camera resolution.
	ColorWidth  int
	ColorHeight int
	// DepthMode selects the depth camera field of view, "narrow" or "wide".
	DepthMode string
	// Synchronized requires color+depth pairs captured at the same instant.
	Synchronized bool

	// CaptureTimeoutMS bounds one capture wait; defaults to one 15 FPS
	// sensor period. RetrySleepMS is the pause after a capture timeout.
	CaptureTimeoutMS int
	RetrySleepMS     int

	// TickRateHz is how often the render loop polls for a new frame.
	TickRateHz int

	// PushDSN is the MySQL DSN backing web push subscriptions. Empty
	// disables push notifications.
	PushDSN string
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.ColorWidth == 0 {
		c.ColorWidth = 1280
	}
	if c.ColorHeight == 0 {
		c.ColorHeight = 720
	}
	if c.DepthMode == "" {
		c.DepthMode = "narrow"
	}
	if c.CaptureTimeoutMS == 0 {
		c.CaptureTimeoutMS = 66
	}
	if c.RetrySleepMS == 0 {
		c.RetrySleepMS = 100
	}
	if c.TickRateHz == 0 {
		c.TickRateHz = 60
	}
}

func (c *Config) validate() error {
	if c.ColorWidth < 0 || c.ColorHeight < 0 {
		return errors.Errorf("negative color resolution %dx%d", c.ColorWidth, c.ColorHeight)
	}
	if c.CaptureTimeoutMS < 0 || c.RetrySleepMS < 0 {
		return errors.New("negative capture timing")
	}
	if c.TickRateHz < 0 {
		return errors.New("negative tick rate")
	}
	return nil
}

func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutMS) * time.Millisecond
}

func (c *Config) RetrySleep() time.Duration {
	return time.Duration(c.RetrySleepMS) * time.Millisecond
}

func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}
