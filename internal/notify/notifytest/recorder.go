// Package notifytest provides a Notifier that records events for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/navid-fn/margincore/internal/notify"
)

// Recorder collects every event it is asked to publish.
type Recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *Recorder) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// Count returns how many events were published on topic.
func (r *Recorder) Count(topic notify.Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Topic == topic {
			n++
		}
	}
	return n
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
