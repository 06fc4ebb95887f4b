package client

import (
	"cmp"
	"slices"
	"sync"

	"github.com/npezzotti/go-dm/internal/types"
	"github.com/samber/lo"
)

// Thread is the local view of one conversation. Every apply is idempotent so
// repeated or reordered pushes converge on the same state.
type Thread struct {
	self    string
	partner string

	mu       sync.RWMutex
	messages map[string]types.Message
	deleted  map[string]struct{}
}

func NewThread(self, partner string) *Thread {
	return &Thread{
		self:     self,
		partner:  partner,
		messages: make(map[string]types.Message),
		deleted:  make(map[string]struct{}),
	}
}

// Belongs reports whether msg is part of this conversation.
func (t *Thread) Belongs(msg types.Message) bool {
	return (msg.SenderId == t.self && msg.ReceiverId == t.partner) ||
		(msg.SenderId == t.partner && msg.ReceiverId == t.self)
}

// Load seeds the thread from a fetched history, applying each record as an upsert.
func (t *Thread) Load(messages []types.Message) {
	for _, msg := range messages {
		t.Upsert(msg)
	}
}

// Upsert stores msg unless it is foreign, deleted or older than what is held.
// Seen never reverts once set.
func (t *Thread) Upsert(msg types.Message) bool {
	if !t.Belongs(msg) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, gone := t.deleted[msg.Id]; gone {
		return false
	}

	cur, ok := t.messages[msg.Id]
	if ok {
		if msg.UpdatedAt.Before(cur.UpdatedAt) {
			if msg.Seen && !cur.Seen {
				cur.Seen = true
				t.messages[msg.Id] = cur
				return true
			}
			return false
		}
		msg.Seen = msg.Seen || cur.Seen
		if equal(cur, msg) {
			return false
		}
	}

	t.messages[msg.Id] = msg
	return true
}

// MarkSeen flags a held message seen. An unknown message is stored as given.
func (t *Thread) MarkSeen(msg types.Message) bool {
	msg.Seen = true
	return t.Upsert(msg)
}

// Remove deletes id and keeps a tombstone so a late upsert cannot revive it.
func (t *Thread) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, had := t.messages[id]
	delete(t.messages, id)
	t.deleted[id] = struct{}{}
	return had
}

func (t *Thread) Get(id string) (types.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	msg, ok := t.messages[id]
	return msg, ok
}

// Messages returns the held messages oldest first, ties broken by id.
func (t *Thread) Messages() []types.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := lo.Values(t.messages)
	slices.SortFunc(out, func(a, b types.Message) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Id, b.Id))
	})
	return out
}

// Unseen counts messages from the partner not yet seen.
func (t *Thread) Unseen() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return lo.CountBy(lo.Values(t.messages), func(m types.Message) bool {
		return m.SenderId == t.partner && !m.Seen
	})
}

func equal(a, b types.Message) bool {
	return a.Id == b.Id &&
		a.Seen == b.Seen &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		lo.FromPtr(a.Text) == lo.FromPtr(b.Text) &&
		lo.FromPtr(a.Image) == lo.FromPtr(b.Image)
}
