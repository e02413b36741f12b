package notify

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	got chan *Notification
}

func (l *recordingListener) Notify(n *Notification) error {
	l.got <- n
	return nil
}

func TestNotifierSendsOnce(t *testing.T) {
	l := &recordingListener{got: make(chan *Notification, 4)}
	n := &Notifier{Listeners: []Listener{l}}

	n.PipelineFailed(errors.New("device unplugged"))
	select {
	case msg := <-l.got:
		assert.Contains(t, msg.Body, "device unplugged")
		require.NotEmpty(t, msg.Title)
	case <-time.After(time.Second):
		t.Fatal("listener was not notified")
	}

	// A second failure report in the same run is suppressed.
	n.PipelineFailed(errors.New("again"))
	select {
	case <-l.got:
		t.Fatal("duplicate notification sent")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifierNoListeners(t *testing.T) {
	n := &Notifier{}
	assert.NotPanics(t, func() {
		n.PipelineFailed(errors.New("nothing to hear this"))
	})
}
