package database

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemRepository is a process-local Repository used for development and tests.
type MemRepository struct {
	mu       sync.RWMutex
	accounts map[string]User
	messages map[string]Message
	now      func() time.Time
	newId    func() (string, error)
}

func NewMemRepository() *MemRepository {
	return &MemRepository{
		accounts: make(map[string]User),
		messages: make(map[string]Message),
		now:      now,
		newId:    newId,
	}
}

func (m *MemRepository) Ping(_ context.Context) error {
	return nil
}

func (m *MemRepository) CreateAccount(_ context.Context, params CreateAccountParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.accounts {
		if u.EmailAddress == params.EmailAddress {
			return User{}, ErrConflict
		}
	}

	id, err := m.newId()
	if err != nil {
		return User{}, upstream("generate account id", err)
	}

	ts := m.now()
	u := User{
		Id:           id,
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	m.accounts[id] = u

	return u, nil
}

func (m *MemRepository) GetAccountById(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.accounts[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.PasswordHash = ""
	return u, nil
}

func (m *MemRepository) GetAccountByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.accounts {
		if u.EmailAddress == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemRepository) ListAccountsExcept(_ context.Context, id string) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]User, 0, len(m.accounts))
	for _, u := range m.accounts {
		if u.Id == id {
			continue
		}
		u.PasswordHash = ""
		u.EmailAddress = ""
		users = append(users, u)
	}

	slices.SortFunc(users, func(a, b User) int {
		return cmp.Or(cmp.Compare(a.Username, b.Username), cmp.Compare(a.Id, b.Id))
	})
	return users, nil
}

func copyString(s *string) *string {
	if blank(s) {
		return nil
	}
	v := *s
	return &v
}

func (m *MemRepository) CreateMessage(_ context.Context, params CreateMessageParams) (Message, error) {
	if err := ValidateCreateMessage(params); err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.newId()
	if err != nil {
		return Message{}, upstream("generate message id", err)
	}

	ts := m.now()
	msg := Message{
		Id:         id,
		SenderId:   params.SenderId,
		ReceiverId: params.ReceiverId,
		Text:       copyString(params.Text),
		Image:      copyString(params.Image),
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	m.messages[id] = msg

	return msg, nil
}

func (m *MemRepository) GetMessageById(_ context.Context, id string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (m *MemRepository) UpdateMessageText(_ context.Context, id, requesterId, text string) (Message, error) {
	if err := validateText(text); err != nil {
		return Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	if msg.SenderId != requesterId {
		return Message{}, ErrForbidden
	}

	msg.Text = &text
	msg.UpdatedAt = m.now()
	m.messages[id] = msg

	return msg, nil
}

func (m *MemRepository) DeleteMessage(_ context.Context, id, requesterId string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	if msg.SenderId != requesterId {
		return Message{}, ErrForbidden
	}

	delete(m.messages, id)
	return msg, nil
}

func (m *MemRepository) MarkMessageSeen(_ context.Context, id string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}

	if !msg.Seen {
		msg.Seen = true
		msg.UpdatedAt = m.now()
		m.messages[id] = msg
	}

	return msg, nil
}

func (m *MemRepository) MarkAllSeenFrom(_ context.Context, otherUserId, viewerId string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now()
	changed := make([]Message, 0)
	for id, msg := range m.messages {
		if msg.SenderId != otherUserId || msg.ReceiverId != viewerId || msg.Seen {
			continue
		}
		msg.Seen = true
		msg.UpdatedAt = ts
		m.messages[id] = msg
		changed = append(changed, msg)
	}

	sortMessages(changed)
	return changed, nil
}

func (m *MemRepository) ListMessagesBetween(_ context.Context, userA, userB string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := make([]Message, 0)
	for _, msg := range m.messages {
		if (msg.SenderId == userA && msg.ReceiverId == userB) ||
			(msg.SenderId == userB && msg.ReceiverId == userA) {
			messages = append(messages, msg)
		}
	}

	sortMessages(messages)
	return messages, nil
}

func (m *MemRepository) ListUnseenCounts(_ context.Context, viewerId string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, msg := range m.messages {
		if msg.ReceiverId == viewerId && !msg.Seen {
			counts[msg.SenderId]++
		}
	}
	return counts, nil
}

func sortMessages(messages []Message) {
	slices.SortFunc(messages, func(a, b Message) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Id, b.Id))
	})
}
