package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/npezzotti/go-dm/internal/server"
	"github.com/npezzotti/go-dm/internal/types"
)

// Subscription routes pushed events into one conversation until closed.
type Subscription struct {
	thread  *Thread
	changed chan struct{}

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newSubscription(thread *Thread) *Subscription {
	return &Subscription{
		thread:  thread,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *Subscription) Thread() *Thread {
	return s.thread
}

// Changed signals after an event altered the thread. Signals coalesce.
func (s *Subscription) Changed() <-chan struct{} {
	return s.changed
}

// Done is closed once the subscription is released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// apply folds ev into the thread and reports whether anything changed.
func (s *Subscription) apply(ev Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, nil
	}

	changed, err := applyEvent(s.thread, ev)
	if err != nil || !changed {
		return false, err
	}

	select {
	case s.changed <- struct{}{}:
	default:
	}
	return true, nil
}

func applyEvent(t *Thread, ev Event) (bool, error) {
	switch ev.Event {
	case server.EventNewMessage, server.EventMessageUpdated:
		var msg types.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return false, fmt.Errorf("decode %s: %w", ev.Event, err)
		}
		return t.Upsert(msg), nil
	case server.EventMessageSeen:
		var msg types.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return false, fmt.Errorf("decode %s: %w", ev.Event, err)
		}
		return t.MarkSeen(msg), nil
	case server.EventMessageDeleted:
		var ref types.MessageRef
		if err := json.Unmarshal(ev.Data, &ref); err != nil {
			return false, fmt.Errorf("decode %s: %w", ev.Event, err)
		}
		if ref.Id == "" {
			return false, fmt.Errorf("decode %s: missing id", ev.Event)
		}
		return t.Remove(ref.Id), nil
	default:
		return false, nil
	}
}
