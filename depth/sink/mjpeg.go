package sink

import (
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// MJPEG multi-streaming, based on implementation by saljam:
// https://github.com/saljam/mjpeg/blob/master/stream.go

const boundaryWord = "MJPEGBOUNDARY"
const headerf = "\r\n" +
	"--" + boundaryWord + "\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Length: %d\r\n" +
	"X-Timestamp: 0.000000\r\n" +
	"\r\n"

// Preview serves the color half of the capture stream as multipart MJPEG
// for quick visual inspection in a browser. It consumes BGRA frames on the
// render tick and encodes them only while someone is watching.
type Preview struct {
	lock      sync.Mutex
	listeners map[chan []byte]bool
}

func NewPreview() *Preview {
	return &Preview{
		listeners: make(map[chan []byte]bool),
	}
}

func (p *Preview) empty() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.listeners) == 0
}

// OnFrame implements Consumer. The cloud half is ignored here.
func (p *Preview) OnFrame(color, cloud []byte, width, height int) {
	if p.empty() {
		// Nobody is watching; don't bother encoding.
		return
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC4, color)
	if err != nil {
		log.Errorf("Error wrapping color frame for preview: %v", err)
		return
	}
	defer mat.Close()

	jpeg, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		log.Errorf("Error encoding preview frame to JPG: %v", err)
		return
	}

	header := fmt.Sprintf(headerf, len(jpeg))
	frame := make([]byte, len(header)+len(jpeg))
	copy(frame, header)
	copy(frame[len(header):], jpeg)

	p.lock.Lock()
	defer p.lock.Unlock()
	for c := range p.listeners {
		select {
		case c <- frame:
		default:
			// Skip listeners not ready for the next frame.
		}
	}
}

// ServeHTTP implements http.Handler, serving the MJPEG stream.
func (p *Preview) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.WithField("addr", r.RemoteAddr).Info("MJPEG preview connected")
	w.Header().Add("Content-Type", "multipart/x-mixed-replace;boundary="+boundaryWord)

	c := make(chan []byte)
	p.lock.Lock()
	p.listeners[c] = true
	p.lock.Unlock()

	for b := range c {
		if _, err := w.Write(b); err != nil {
			break
		}
	}

	p.lock.Lock()
	delete(p.listeners, c)
	p.lock.Unlock()
	log.WithField("addr", r.RemoteAddr).Info("MJPEG preview disconnected")
}
