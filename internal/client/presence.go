package client

import (
	"slices"
	"sync"
)

// Presence holds the last online snapshot pushed by the server.
type Presence struct {
	mu     sync.RWMutex
	online []string
}

// Set replaces the snapshot. Snapshots are full sets, never deltas.
func (p *Presence) Set(ids []string) {
	ids = slices.Clone(ids)
	slices.Sort(ids)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = ids
}

func (p *Presence) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.online)
}

func (p *Presence) IsOnline(userId string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, found := slices.BinarySearch(p.online, userId)
	return found
}
