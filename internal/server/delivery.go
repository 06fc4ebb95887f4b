package server

import (
	"log"

	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/types"
)

// Lifecycle is a message lifecycle event.
type Lifecycle int

const (
	Created Lifecycle = iota
	Updated
	Deleted
	SeenMarked
)

func (l Lifecycle) String() string {
	switch l {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	case SeenMarked:
		return "seenMarked"
	default:
		return "unknown"
	}
}

// ConnectionLookup resolves a user id to its live connection.
type ConnectionLookup interface {
	Lookup(userId string) (Handle, bool)
}

// Router turns a lifecycle event into pushes on the participants' live
// connections. Offline participants are skipped and push failures are
// swallowed; the store already holds the state and the next read reconciles it.
type Router struct {
	log   *log.Logger
	conns ConnectionLookup
	stats stats.StatsProvider
}

func NewRouter(logger *log.Logger, conns ConnectionLookup, su stats.StatsProvider) *Router {
	return &Router{
		log:   logger,
		conns: conns,
		stats: su,
	}
}

// Recipients returns the user ids interested in an event for msg.
func Recipients(kind Lifecycle, msg types.Message) []string {
	switch kind {
	case Created:
		return []string{msg.ReceiverId}
	case Updated, Deleted:
		if msg.SenderId == msg.ReceiverId {
			return []string{msg.SenderId}
		}
		return []string{msg.SenderId, msg.ReceiverId}
	case SeenMarked:
		return []string{msg.SenderId}
	default:
		return nil
	}
}

func payload(kind Lifecycle, msg types.Message) *ServerMessage {
	switch kind {
	case Created:
		return NewMessage(msg)
	case Updated:
		return MessageUpdated(msg)
	case Deleted:
		return MessageDeleted(msg.Id)
	case SeenMarked:
		return MessageSeen(msg)
	default:
		return nil
	}
}

// Deliver pushes the event to every online recipient and returns the number
// of successful pushes.
func (rt *Router) Deliver(kind Lifecycle, msg types.Message) int {
	ev := payload(kind, msg)
	if ev == nil {
		rt.log.Printf("unknown lifecycle event %d for message %q", kind, msg.Id)
		return 0
	}

	delivered := 0
	for _, userId := range Recipients(kind, msg) {
		h, ok := rt.conns.Lookup(userId)
		if !ok {
			continue
		}

		if err := h.Push(ev); err != nil {
			rt.log.Printf("%s push for message %q to user %q failed: %v", kind, msg.Id, userId, err)
			rt.stats.Incr(metricPushesDropped)
			continue
		}
		delivered++
	}

	return delivered
}
