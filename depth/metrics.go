package depth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointcam_frames_captured_total",
		Help: "Frames successfully captured and transformed.",
	})
	captureTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointcam_capture_timeouts_total",
		Help: "Capture attempts that timed out waiting for a synchronized pair.",
	})
	captureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointcam_capture_failures_total",
		Help: "Fatal capture errors that stopped the capture loop.",
	})
	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointcam_frames_published_total",
		Help: "Frames handed off to the consumer through the slot.",
	})
	framesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pointcam_frames_discarded_total",
		Help: "Frames released without being consumed, during shutdown.",
	})
	loopRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pointcam_capture_loop_running",
		Help: "Whether the capture loop is currently running.",
	})
)
