// Package notify pushes pipeline failure alerts to registered listeners,
// so an unattended host learns when the camera feed has died.
package notify

import (
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

// Notification is sent to all Listeners registered with a Notifier.
type Notification struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	TimeString string `json:"time"`
}

type Listener interface {
	Notify(n *Notification) error
}

// Notifier fans pipeline events out to listeners. A given process run
// reports at most one failure; once the pipeline is down it stays down
// (reopening is host policy), so repeated alerts carry no information.
type Notifier struct {
	Listeners []Listener

	once sync.Once
}

// PipelineFailed is invoked when the capture loop stops on a fatal error.
func (n *Notifier) PipelineFailed(cause error) {
	n.once.Do(func() {
		notification := &Notification{
			Title:      "Depth camera pipeline stopped",
			Body:       cause.Error(),
			TimeString: time.Now().Format("3:04 PM"),
		}
		log.Infof("Sending notification: %v", spew.Sdump(notification))
		for _, l := range n.Listeners {
			go func(l Listener) {
				if err := l.Notify(notification); err != nil {
					log.Errorf("Failed to send notification: %v", err)
				}
			}(l)
		}
	})
}
