package database

import "context"

// Repository is the message store gateway consumed by the conversation service.
// Lookups of absent records return ErrNotFound, authorization mismatches return
// ErrForbidden and store failures are wrapped in *UpstreamError.
type Repository interface {
	Ping(ctx context.Context) error
	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, id string) (User, error)
	GetAccountByEmail(ctx context.Context, email string) (User, error)
	ListAccountsExcept(ctx context.Context, id string) ([]User, error)

	// CreateMessage returns the persisted record, including its id and timestamps.
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessageById(ctx context.Context, id string) (Message, error)
	UpdateMessageText(ctx context.Context, id, requesterId, text string) (Message, error)
	// DeleteMessage returns the record as it was before removal.
	DeleteMessage(ctx context.Context, id, requesterId string) (Message, error)
	MarkMessageSeen(ctx context.Context, id string) (Message, error)
	// MarkAllSeenFrom marks every unseen message from otherUserId to viewerId
	// and returns the messages that changed.
	MarkAllSeenFrom(ctx context.Context, otherUserId, viewerId string) ([]Message, error)
	// ListMessagesBetween orders by creation time, ties broken by id.
	ListMessagesBetween(ctx context.Context, userA, userB string) ([]Message, error)
	ListUnseenCounts(ctx context.Context, viewerId string) (map[string]int, error)
}
