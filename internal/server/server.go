package server

import (
	"context"
	"log"
	"sync"

	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/types"
)

const (
	metricActiveClients   = "NumActiveClients"
	metricPushesDropped   = "NumPushesDropped"
	MetricMessagesCreated = "NumMessagesCreated"
)

// ChatServer owns every live connection, the connection registry and the
// delivery router.
type ChatServer struct {
	log         *log.Logger
	stats       stats.StatsProvider
	registry    *Registry
	router      *Router
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	active      sync.WaitGroup
}

func NewChatServer(logger *log.Logger, su stats.StatsProvider) (*ChatServer, error) {
	su.RegisterMetric(metricActiveClients)
	su.RegisterMetric(metricPushesDropped)
	su.RegisterMetric(MetricMessagesCreated)

	registry := NewRegistry(logger, NewPresenceBroadcaster(logger, su))

	return &ChatServer{
		log:      logger,
		stats:    su,
		registry: registry,
		router:   NewRouter(logger, registry, su),
		clients:  make(map[*Client]struct{}),
	}, nil
}

func (cs *ChatServer) Registry() *Registry {
	return cs.registry
}

// Deliver routes a lifecycle event for msg to its online participants.
func (cs *ChatServer) Deliver(kind Lifecycle, msg types.Message) int {
	return cs.router.Deliver(kind, msg)
}

// Connect tracks c and, when it carries a user id, registers it for presence
// and delivery, replacing any earlier connection for the same user.
func (cs *ChatServer) Connect(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.active.Add(1)
	cs.clientsLock.Unlock()
	cs.stats.Incr(metricActiveClients)

	if c.userId == "" {
		cs.log.Printf("anonymous connection %s accepted", c.id)
		return
	}

	cs.log.Printf("registering connection %s for user %q", c.id, c.userId)
	cs.registry.Register(c.userId, c)
}

// Disconnect releases c exactly once. A connection that was already replaced
// leaves the registry untouched.
func (cs *ChatServer) Disconnect(c *Client) {
	cs.clientsLock.Lock()
	if _, ok := cs.clients[c]; !ok {
		cs.clientsLock.Unlock()
		return
	}
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	if c.userId != "" {
		if cs.registry.UnregisterIfCurrent(c.userId, c) {
			cs.log.Printf("unregistered connection %s for user %q", c.id, c.userId)
		} else {
			cs.log.Printf("connection %s for user %q was already replaced", c.id, c.userId)
		}
	}

	cs.stats.Decr(metricActiveClients)
	cs.active.Done()
}

func (cs *ChatServer) numClients() int {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	return len(cs.clients)
}

// Shutdown stops every connection and waits for them to disconnect.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.Close()
	}
	cs.clientsLock.Unlock()

	done := make(chan struct{})
	go func() {
		cs.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
