package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 1280, c.ColorWidth)
	assert.Equal(t, 720, c.ColorHeight)
	assert.Equal(t, "narrow", c.DepthMode)
	assert.Equal(t, 66*time.Millisecond, c.CaptureTimeout())
	assert.Equal(t, 100*time.Millisecond, c.RetrySleep())
	assert.Equal(t, time.Second/60, c.TickInterval())
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"ColorWidth": 640,
		"ColorHeight": 480,
		"DepthMode": "wide",
		"Synchronized": true,
		"RetrySleepMS": 50
	}`), 0644))

	c, err := configFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 640, c.ColorWidth)
	assert.Equal(t, 480, c.ColorHeight)
	assert.Equal(t, "wide", c.DepthMode)
	assert.True(t, c.Synchronized)
	assert.Equal(t, 50*time.Millisecond, c.RetrySleep())
	// Unspecified fields pick up defaults.
	assert.Equal(t, 66*time.Millisecond, c.CaptureTimeout())
}

func TestConfigFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"TickRateHz": -5}`), 0644))
	_, err := configFromFile(path)
	require.Error(t, err)

	_, err = configFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ColorWidth": 320, "ColorHeight": 240}`), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Load(ctx, path))
	assert.Equal(t, 320, Get().ColorWidth)
}
