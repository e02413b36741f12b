package sink

import (
	"encoding/binary"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a frame to the client.
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// CloudStream pushes point-cloud frames to websocket viewers. Each binary
// message is a little endian uint32 width, uint32 height, then the packed
// width*3 x height float32 samples. Slow clients skip frames rather than
// backing up the render tick.
type CloudStream struct {
	upgrader websocket.Upgrader

	lock    sync.Mutex
	clients map[chan []byte]bool
}

func NewCloudStream() *CloudStream {
	return &CloudStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[chan []byte]bool),
	}
}

func (s *CloudStream) empty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.clients) == 0
}

// OnFrame implements Consumer. The cloud bytes are copied into the outgoing
// message, so nothing of the frame is retained past the call.
func (s *CloudStream) OnFrame(color, cloud []byte, width, height int) {
	if s.empty() {
		return
	}
	msg := packCloud(cloud, width, height)

	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.clients {
		select {
		case c <- msg:
		default:
			// Client still writing the previous frame; skip this one.
		}
	}
}

func packCloud(cloud []byte, width, height int) []byte {
	b := make([]byte, 8+len(cloud))
	binary.LittleEndian.PutUint32(b, uint32(width))
	binary.LittleEndian.PutUint32(b[4:], uint32(height))
	copy(b[8:], cloud)
	return b
}

// ServeHTTP implements http.Handler, upgrading to a websocket and streaming
// frames until the client goes away.
func (s *CloudStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Cloud stream upgrade failed: %v", err)
		return
	}
	log.WithField("addr", r.RemoteAddr).Info("Cloud stream connected")

	c := make(chan []byte, 1)
	s.lock.Lock()
	s.clients[c] = true
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		delete(s.clients, c)
		s.lock.Unlock()
		conn.Close()
		log.WithField("addr", r.RemoteAddr).Info("Cloud stream disconnected")
	}()

	// Drain control messages; an error here means the client left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case msg := <-c:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
