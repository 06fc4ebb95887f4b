package client

import (
	"testing"
	"time"

	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/npezzotti/go-dm/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func message(id, from, to, text string, updated time.Duration) types.Message {
	return types.Message{
		Id:         id,
		SenderId:   from,
		ReceiverId: to,
		Text:       testutil.StrPtr(text),
		CreatedAt:  base,
		UpdatedAt:  base.Add(updated),
	}
}

func TestThread_Upsert(t *testing.T) {
	th := NewThread("bob", "alice")

	assert.True(t, th.Upsert(message("m1", "alice", "bob", "hi", 0)))
	assert.False(t, th.Upsert(message("m1", "alice", "bob", "hi", 0)), "expected duplicate push to be a no-op")

	assert.True(t, th.Upsert(message("m1", "alice", "bob", "hello", time.Second)))
	assert.False(t, th.Upsert(message("m1", "alice", "bob", "stale", 0)), "expected older update to lose")

	got, ok := th.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "hello", *got.Text)

	assert.False(t, th.Upsert(message("m2", "alice", "carol", "other", 0)), "expected foreign conversation to be ignored")
	assert.Len(t, th.Messages(), 1)
}

func TestThread_SeenIsMonotonic(t *testing.T) {
	th := NewThread("alice", "bob")
	th.Upsert(message("m1", "alice", "bob", "hi", 0))

	seen := message("m1", "alice", "bob", "hi", time.Second)
	assert.True(t, th.MarkSeen(seen))

	// an update issued before the seen mark arrives late
	assert.False(t, th.Upsert(message("m1", "alice", "bob", "hi", 0)))
	got, _ := th.Get("m1")
	assert.True(t, got.Seen)

	// a newer edit that does not carry the flag keeps it
	assert.True(t, th.Upsert(message("m1", "alice", "bob", "edited", 2*time.Second)))
	got, _ = th.Get("m1")
	assert.True(t, got.Seen)
	assert.Equal(t, "edited", *got.Text)

	t.Run("seen with older timestamp still applies", func(t *testing.T) {
		th := NewThread("alice", "bob")
		th.Upsert(message("m1", "alice", "bob", "edited", 2*time.Second))
		assert.True(t, th.MarkSeen(message("m1", "alice", "bob", "hi", time.Second)))
		got, _ := th.Get("m1")
		assert.True(t, got.Seen)
		assert.Equal(t, "edited", *got.Text)
	})
}

func TestThread_Remove(t *testing.T) {
	th := NewThread("bob", "alice")
	th.Upsert(message("m1", "alice", "bob", "hi", 0))

	assert.True(t, th.Remove("m1"))
	assert.False(t, th.Remove("m1"), "expected repeated delete to be a no-op")
	assert.False(t, th.Upsert(message("m1", "alice", "bob", "hi", time.Second)), "expected tombstone to block revival")
	assert.Empty(t, th.Messages())

	t.Run("delete before create", func(t *testing.T) {
		th := NewThread("bob", "alice")
		assert.False(t, th.Remove("m9"))
		assert.False(t, th.Upsert(message("m9", "alice", "bob", "late", 0)))
		assert.Empty(t, th.Messages())
	})
}

func TestThread_MessagesOrder(t *testing.T) {
	th := NewThread("bob", "alice")

	later := message("a", "bob", "alice", "second", 0)
	later.CreatedAt = base.Add(time.Minute)
	th.Load([]types.Message{
		later,
		message("c", "alice", "bob", "tie-2", 0),
		message("b", "alice", "bob", "tie-1", 0),
	})

	ids := []string{}
	for _, m := range th.Messages() {
		ids = append(ids, m.Id)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, 2, th.Unseen())
}

func TestPresence(t *testing.T) {
	p := &Presence{}
	assert.Empty(t, p.Online())

	p.Set([]string{"carol", "alice"})
	assert.Equal(t, []string{"alice", "carol"}, p.Online())
	assert.True(t, p.IsOnline("carol"))
	assert.False(t, p.IsOnline("bob"))

	p.Set(nil)
	assert.False(t, p.IsOnline("alice"), "expected a snapshot to replace the previous one")
}
