package server

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClientStopped  = errors.New("client stopped")
)

// Client is a live websocket connection. A client with an empty user id is
// connected but anonymous and never registered for presence or delivery.
type Client struct {
	id          string
	conn        *websocket.Conn
	chatServer  *ChatServer
	log         *log.Logger
	userId      string
	connectedAt time.Time
	send        chan *ServerMessage
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewClient(userId string, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		id:          uuid.NewString(),
		conn:        conn,
		chatServer:  cs,
		log:         l,
		userId:      userId,
		connectedAt: Now(),
		send:        make(chan *ServerMessage, sendBufferSize),
		stop:        make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) UserId() string {
	return c.userId
}

func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}

// Push queues msg without blocking.
func (c *Client) Push(msg *ServerMessage) error {
	select {
	case <-c.stop:
		return ErrClientStopped
	default:
	}

	if !c.queueMessage(msg) {
		return ErrSendBufferFull
	}
	return nil
}

// Close stops the client. The write pump closes the socket, which ends the
// read pump and its cleanup. Safe to call more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for connection %s", c.id)
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for connection %s", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		// the channel is server to client only
		c.log.Printf("ignoring %d byte inbound message on connection %s", len(raw), c.id)
		c.queueMessage(ErrInvalidMessage())
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("failed to send message to connection %s, channel is full", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) cleanup() {
	if c.chatServer != nil {
		c.chatServer.Disconnect(c)
	}
	c.Close()
}
