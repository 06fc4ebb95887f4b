package server

import (
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/npezzotti/go-dm/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStats() *stats.MockStatsUpdater {
	return stats.NewPermissiveMock()
}

func testMessage() types.Message {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return types.Message{
		Id:         "m1",
		SenderId:   "alice",
		ReceiverId: "bob",
		Text:       testutil.StrPtr("hi"),
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func TestRecipients(t *testing.T) {
	msg := testMessage()

	tcases := []struct {
		name     string
		kind     Lifecycle
		msg      types.Message
		expected []string
	}{
		{name: "created goes to receiver", kind: Created, msg: msg, expected: []string{"bob"}},
		{name: "updated goes to both", kind: Updated, msg: msg, expected: []string{"alice", "bob"}},
		{name: "deleted goes to both", kind: Deleted, msg: msg, expected: []string{"alice", "bob"}},
		{name: "seen goes to sender", kind: SeenMarked, msg: msg, expected: []string{"alice"}},
		{
			name:     "self conversation is not doubled",
			kind:     Updated,
			msg:      types.Message{Id: "m2", SenderId: "alice", ReceiverId: "alice"},
			expected: []string{"alice"},
		},
		{name: "unknown kind", kind: Lifecycle(42), msg: msg, expected: nil},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Recipients(tc.kind, tc.msg))
		})
	}
}

func TestRouter_Deliver(t *testing.T) {
	tcases := []struct {
		name         string
		kind         Lifecycle
		online       []string
		event        string
		expectAlice  int
		expectBob    int
		expectCarol  int
		expectPushed int
	}{
		{name: "created both online", kind: Created, online: []string{"alice", "bob", "carol"}, event: EventNewMessage, expectBob: 1, expectPushed: 1},
		{name: "created receiver offline", kind: Created, online: []string{"alice", "carol"}, event: EventNewMessage, expectPushed: 0},
		{name: "updated both online", kind: Updated, online: []string{"alice", "bob", "carol"}, event: EventMessageUpdated, expectAlice: 1, expectBob: 1, expectPushed: 2},
		{name: "updated sender only online", kind: Updated, online: []string{"alice"}, event: EventMessageUpdated, expectAlice: 1, expectPushed: 1},
		{name: "deleted both online", kind: Deleted, online: []string{"alice", "bob", "carol"}, event: EventMessageDeleted, expectAlice: 1, expectBob: 1, expectPushed: 2},
		{name: "seen sender online", kind: SeenMarked, online: []string{"alice", "bob", "carol"}, event: EventMessageSeen, expectAlice: 1, expectPushed: 1},
		{name: "nobody online", kind: Deleted, online: nil, event: EventMessageDeleted, expectPushed: 0},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			logger := testutil.TestLogger(t)
			r := NewRegistry(logger, nil)
			handles := map[string]*fakeHandle{
				"alice": newFakeHandle("alice"),
				"bob":   newFakeHandle("bob"),
				"carol": newFakeHandle("carol"),
			}
			for _, id := range tc.online {
				r.Register(id, handles[id])
			}

			router := NewRouter(logger, r, newStats())
			pushed := router.Deliver(tc.kind, testMessage())

			assert.Equal(t, tc.expectPushed, pushed)
			assert.Len(t, handles["alice"].events(tc.event), tc.expectAlice)
			assert.Len(t, handles["bob"].events(tc.event), tc.expectBob)
			assert.Len(t, handles["carol"].pushed, tc.expectCarol, "expected no pushes to a third party")
		})
	}
}

func TestRouter_DeliverPayloads(t *testing.T) {
	logger := testutil.TestLogger(t)
	r := NewRegistry(logger, nil)
	alice := newFakeHandle("alice")
	bob := newFakeHandle("bob")
	r.Register("alice", alice)
	r.Register("bob", bob)

	router := NewRouter(logger, r, newStats())
	msg := testMessage()

	router.Deliver(Created, msg)
	got := bob.events(EventNewMessage)
	require.Len(t, got, 1)
	assert.Equal(t, msg, got[0].Data)

	router.Deliver(Deleted, msg)
	got = alice.events(EventMessageDeleted)
	require.Len(t, got, 1)
	assert.Equal(t, types.MessageRef{Id: "m1"}, got[0].Data)
}

func TestRouter_PushFailureIsSwallowed(t *testing.T) {
	logger := testutil.TestLogger(t)
	r := NewRegistry(logger, nil)
	alice := newFakeHandle("alice")
	alice.pushErr = errors.New("broken pipe")
	bob := newFakeHandle("bob")
	r.Register("alice", alice)
	r.Register("bob", bob)

	su := newStats()
	router := NewRouter(logger, r, su)

	pushed := router.Deliver(Updated, testMessage())
	assert.Equal(t, 1, pushed, "expected remaining participant to still receive the event")
	assert.Len(t, bob.events(EventMessageUpdated), 1)
	su.AssertCalled(t, "Incr", metricPushesDropped)
}

func TestRouter_PreservesIssueOrder(t *testing.T) {
	logger := testutil.TestLogger(t)
	r := NewRegistry(logger, nil)
	bob := newFakeHandle("bob")
	r.Register("bob", bob)
	router := NewRouter(logger, r, newStats())

	msg := testMessage()
	router.Deliver(Created, msg)
	msg.Text = testutil.StrPtr("hello")
	router.Deliver(Updated, msg)
	router.Deliver(Deleted, msg)

	require.Len(t, bob.pushed, 3)
	assert.Equal(t, EventNewMessage, bob.pushed[0].Event)
	assert.Equal(t, EventMessageUpdated, bob.pushed[1].Event)
	assert.Equal(t, EventMessageDeleted, bob.pushed[2].Event)
}

func TestLifecycle_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "updated", Updated.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "seenMarked", SeenMarked.String())
	assert.Equal(t, "unknown", Lifecycle(9).String())
}
