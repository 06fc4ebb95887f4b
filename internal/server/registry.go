package server

import (
	"log"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Handle is one live real-time channel belonging to a user.
type Handle interface {
	Id() string
	UserId() string
	Push(msg *ServerMessage) error
	Close()
}

// Broadcaster is informed of the full online set after every registry mutation.
type Broadcaster interface {
	Broadcast(online []string, targets []Handle)
}

// Registry maps a user id to at most one live connection handle. Mutations
// and snapshots share one write lock; lookups take the read lock.
type Registry struct {
	log      *log.Logger
	mu       sync.RWMutex
	conns    map[string]Handle
	presence Broadcaster
}

func NewRegistry(logger *log.Logger, presence Broadcaster) *Registry {
	return &Registry{
		log:      logger,
		conns:    make(map[string]Handle),
		presence: presence,
	}
}

// Register maps userId to h and returns the handle it replaced, if any. The
// replaced handle is closed.
func (r *Registry) Register(userId string, h Handle) Handle {
	r.mu.Lock()
	prev, hadPrev := r.conns[userId]
	r.conns[userId] = h
	r.broadcastLocked()
	r.mu.Unlock()

	if !hadPrev || prev == h {
		return nil
	}

	r.log.Printf("replacing connection %s for user %q with %s", prev.Id(), userId, h.Id())
	prev.Close()
	return prev
}

// Unregister removes the mapping for userId. It reports whether a mapping existed.
func (r *Registry) Unregister(userId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userId]; !ok {
		return false
	}

	delete(r.conns, userId)
	r.broadcastLocked()
	return true
}

// UnregisterIfCurrent removes the mapping for userId only while it still
// points at h, so a late disconnect from a replaced handle is a no-op.
func (r *Registry) UnregisterIfCurrent(userId string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.conns[userId]
	if !ok || cur != h {
		return false
	}

	delete(r.conns, userId)
	r.broadcastLocked()
	return true
}

func (r *Registry) Lookup(userId string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.conns[userId]
	return h, ok
}

// SnapshotOnlineIds returns the currently registered user ids in ascending order.
func (r *Registry) SnapshotOnlineIds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.onlineLocked()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

func (r *Registry) onlineLocked() []string {
	ids := lo.Keys(r.conns)
	slices.Sort(ids)
	return ids
}

func (r *Registry) broadcastLocked() {
	if r.presence == nil {
		return
	}

	online := r.onlineLocked()
	targets := make([]Handle, 0, len(online))
	for _, id := range online {
		targets = append(targets, r.conns[id])
	}

	r.presence.Broadcast(online, targets)
}
