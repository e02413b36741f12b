package serve

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointcam/depth"
)

type stubStatus struct {
	state depth.State
	err   error
}

func (s *stubStatus) State() depth.State { return s.state }
func (s *stubStatus) Err() error         { return s.err }

func decode(t *testing.T, h *HealthServer) map[string]string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rec.Code)
	var m map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestHealthDisabled(t *testing.T) {
	m := decode(t, &HealthServer{})
	assert.Equal(t, "disabled", m["state"])
	assert.Empty(t, m["error"])
}

func TestHealthRunning(t *testing.T) {
	m := decode(t, &HealthServer{Pipeline: &stubStatus{state: depth.StateRunning}})
	assert.Equal(t, "running", m["state"])
}

func TestHealthStoppedWithError(t *testing.T) {
	m := decode(t, &HealthServer{Pipeline: &stubStatus{
		state: depth.StateStopped,
		err:   errors.New("device unplugged"),
	}})
	assert.Equal(t, "stopped", m["state"])
	assert.Equal(t, "device unplugged", m["error"])
}
