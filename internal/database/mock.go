package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(ctx context.Context, id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) ListAccountsExcept(ctx context.Context, id string) ([]User, error) {
	args := m.Called(id)
	if users, ok := args.Get(0).([]User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessageById(ctx context.Context, id string) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) UpdateMessageText(ctx context.Context, id, requesterId, text string) (Message, error) {
	args := m.Called(id, requesterId, text)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) DeleteMessage(ctx context.Context, id, requesterId string) (Message, error) {
	args := m.Called(id, requesterId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) MarkMessageSeen(ctx context.Context, id string) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) MarkAllSeenFrom(ctx context.Context, otherUserId, viewerId string) ([]Message, error) {
	args := m.Called(otherUserId, viewerId)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) ListMessagesBetween(ctx context.Context, userA, userB string) ([]Message, error) {
	args := m.Called(userA, userB)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) ListUnseenCounts(ctx context.Context, viewerId string) (map[string]int, error) {
	args := m.Called(viewerId)
	if counts, ok := args.Get(0).(map[string]int); ok {
		return counts, args.Error(1)
	}
	return nil, args.Error(1)
}
