package server

import (
	"log"

	"github.com/npezzotti/go-dm/internal/stats"
)

// PresenceBroadcaster pushes the full online set to every live connection.
// A failed push is logged and skipped; it never changes registry state.
type PresenceBroadcaster struct {
	log   *log.Logger
	stats stats.StatsProvider
}

func NewPresenceBroadcaster(logger *log.Logger, su stats.StatsProvider) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		log:   logger,
		stats: su,
	}
}

func (b *PresenceBroadcaster) Broadcast(online []string, targets []Handle) {
	msg := OnlineUsers(online)
	for _, h := range targets {
		if err := h.Push(msg); err != nil {
			b.log.Printf("presence push to %s (user %q) failed: %v", h.Id(), h.UserId(), err)
			b.stats.Incr(metricPushesDropped)
		}
	}
}
