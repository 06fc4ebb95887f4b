package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-dm/internal/types"
)

const (
	EventOnlineUsers    = "onlineUsers"
	EventNewMessage     = "newMessage"
	EventMessageUpdated = "messageUpdated"
	EventMessageDeleted = "messageDeleted"
	EventMessageSeen    = "messageSeen"
	EventResponse       = "response"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ServerMessage is the envelope for every server to client frame. Data holds
// the event payload: the sorted online ids for onlineUsers, a full message
// record for newMessage, messageUpdated and messageSeen, and a message
// reference for messageDeleted.
type ServerMessage struct {
	BaseMessage
	Event    string    `json:"event"`
	Data     any       `json:"data,omitempty"`
	Response *Response `json:"response,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func newEvent(name string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: name,
		Data:  data,
	}
}

func OnlineUsers(ids []string) *ServerMessage {
	if ids == nil {
		ids = []string{}
	}
	return newEvent(EventOnlineUsers, ids)
}

func NewMessage(msg types.Message) *ServerMessage {
	return newEvent(EventNewMessage, msg)
}

func MessageUpdated(msg types.Message) *ServerMessage {
	return newEvent(EventMessageUpdated, msg)
}

func MessageDeleted(id string) *ServerMessage {
	return newEvent(EventMessageDeleted, types.MessageRef{Id: id})
}

func MessageSeen(msg types.Message) *ServerMessage {
	return newEvent(EventMessageSeen, msg)
}

func ErrInvalidMessage() *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: EventResponse,
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "unsupported message",
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
