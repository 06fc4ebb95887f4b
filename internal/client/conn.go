package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-dm/internal/server"
)

// Event is one frame pushed by the server.
type Event struct {
	Id        int              `json:"id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Event     string           `json:"event"`
	Data      json.RawMessage  `json:"data,omitempty"`
	Response  *server.Response `json:"response,omitempty"`
}

// Conn is a receiving connection to the push channel. At most one
// conversation subscription is active at a time.
type Conn struct {
	log      *log.Logger
	self     string
	ws       *websocket.Conn
	presence *Presence

	mu  sync.Mutex
	sub *Subscription

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial opens the push channel at url as userId. header carries the session
// cookie the server checks the identity against.
func Dial(ctx context.Context, url, userId string, header http.Header, logger *log.Logger) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		log:      logger,
		self:     userId,
		ws:       ws,
		presence: &Presence{},
		done:     make(chan struct{}),
	}
	go c.read()

	return c, nil
}

func (c *Conn) Presence() *Presence {
	return c.presence
}

// Subscribe scopes delivery to the conversation with partner, releasing any
// earlier subscription first.
func (c *Conn) Subscribe(partner string) *Subscription {
	sub := newSubscription(NewThread(c.self, partner))

	c.mu.Lock()
	prev := c.sub
	c.sub = sub
	c.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	select {
	case <-c.done:
		sub.Close()
	default:
	}
	return sub
}

func (c *Conn) current() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

// Done is closed when the connection stops reading.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the read loop, if any.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

func (c *Conn) Close() error {
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if cerr := c.ws.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Conn) read() {
	defer c.closeOnce.Do(func() {
		if sub := c.current(); sub != nil {
			sub.Close()
		}
		close(c.done)
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				c.err = err
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Printf("decode event: %v", err)
			continue
		}

		c.dispatch(ev)
	}
}

func (c *Conn) dispatch(ev Event) {
	if ev.Event == server.EventOnlineUsers {
		var ids []string
		if err := json.Unmarshal(ev.Data, &ids); err != nil {
			c.log.Printf("decode %s: %v", ev.Event, err)
			return
		}
		c.presence.Set(ids)
		return
	}

	sub := c.current()
	if sub == nil {
		return
	}
	if _, err := sub.apply(ev); err != nil {
		c.log.Println(err)
	}
}
