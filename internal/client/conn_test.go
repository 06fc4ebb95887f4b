package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-dm/internal/server"
	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_Close(t *testing.T) {
	sub := newSubscription(NewThread("bob", "alice"))
	sub.Close()
	assert.NotPanics(t, sub.Close, "expected repeated close to be safe")

	raw, err := json.Marshal(message("m1", "alice", "bob", "hi", 0))
	require.NoError(t, err)

	changed, err := sub.apply(Event{Event: server.EventNewMessage, Data: raw})
	require.NoError(t, err)
	assert.False(t, changed, "expected a closed subscription to ignore events")
	assert.Empty(t, sub.Thread().Messages())
}

func TestSubscription_Apply(t *testing.T) {
	sub := newSubscription(NewThread("bob", "alice"))

	raw, err := json.Marshal(message("m1", "alice", "bob", "hi", 0))
	require.NoError(t, err)

	changed, err := sub.apply(Event{Event: server.EventNewMessage, Data: raw})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = sub.apply(Event{Event: server.EventNewMessage, Data: raw})
	require.NoError(t, err)
	assert.False(t, changed, "expected duplicate delivery to change nothing")

	select {
	case <-sub.Changed():
	default:
		t.Error("expected a change signal")
	}

	_, err = sub.apply(Event{Event: server.EventMessageDeleted, Data: json.RawMessage(`{}`)})
	assert.Error(t, err, "expected delete without id to be rejected")

	_, err = sub.apply(Event{Event: server.EventMessageUpdated, Data: json.RawMessage(`"nope"`)})
	assert.Error(t, err)

	changed, err = sub.apply(Event{Event: "somethingElse"})
	assert.NoError(t, err)
	assert.False(t, changed)
}

// pushServer accepts sockets as the ?userId= user on a live chat server.
func pushServer(t *testing.T) (*server.ChatServer, string) {
	t.Helper()

	logger := testutil.TestLogger(t)
	cs, err := server.NewChatServer(logger, stats.NewPermissiveMock())
	require.NoError(t, err)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := server.NewClient(r.URL.Query().Get("userId"), conn, cs, logger)
		cs.Connect(c)
		go c.Write()
		go c.Read()
	}))
	t.Cleanup(srv.Close)

	return cs, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialAs(t *testing.T, url, userId string) *Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, url+"/?userId="+userId, userId, nil, testutil.TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConn_ReceivesConversation(t *testing.T) {
	cs, url := pushServer(t)

	bob := dialAs(t, url, "bob")
	sub := bob.Subscribe("alice")
	require.Eventually(t, func() bool { return bob.Presence().IsOnline("bob") }, 2*time.Second, 10*time.Millisecond)

	msg := message("m1", "alice", "bob", "hi", 0)
	cs.Deliver(server.Created, msg)
	cs.Deliver(server.Created, msg)
	cs.Deliver(server.Created, message("m2", "carol", "bob", "elsewhere", 0))

	msg.Text = testutil.StrPtr("hello")
	msg.UpdatedAt = msg.UpdatedAt.Add(time.Second)
	cs.Deliver(server.Updated, msg)

	require.Eventually(t, func() bool {
		got, ok := sub.Thread().Get("m1")
		return ok && *got.Text == "hello"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, sub.Thread().Messages(), 1, "expected other conversations to stay out of the thread")

	cs.Deliver(server.Deleted, msg)
	require.Eventually(t, func() bool { return len(sub.Thread().Messages()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConn_SubscribeReplaces(t *testing.T) {
	cs, url := pushServer(t)
	bob := dialAs(t, url, "bob")

	first := bob.Subscribe("alice")
	second := bob.Subscribe("carol")

	select {
	case <-first.Done():
	default:
		t.Fatal("expected switching conversation to release the first subscription")
	}

	require.Eventually(t, func() bool { return bob.Presence().IsOnline("bob") }, 2*time.Second, 10*time.Millisecond)
	cs.Deliver(server.Created, message("m1", "alice", "bob", "hi", 0))
	cs.Deliver(server.Created, message("m2", "carol", "bob", "hey", 0))

	require.Eventually(t, func() bool { return len(second.Thread().Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, first.Thread().Messages(), "expected the released subscription to receive nothing")
}

func TestConn_PresenceAndClose(t *testing.T) {
	_, url := pushServer(t)

	alice := dialAs(t, url, "alice")
	bob := dialAs(t, url, "bob")
	sub := alice.Subscribe("bob")

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"alice", "bob"}, alice.Presence().Online())
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return !alice.Presence().IsOnline("bob") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Close())
	select {
	case <-alice.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected read loop to stop after close")
	}
	select {
	case <-sub.Done():
	default:
		t.Error("expected active subscription to be released with the connection")
	}

	late := alice.Subscribe("carol")
	select {
	case <-late.Done():
	default:
		t.Error("expected subscribing on a closed connection to yield a released subscription")
	}
}
