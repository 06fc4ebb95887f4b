package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/teris-io/shortid"
)

const uniqueViolation = "23505"

const messageColumns = "id, sender_id, receiver_id, text, image, seen, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func now() time.Time {
	return time.Now().UTC().Round(time.Microsecond)
}

func newId() (string, error) {
	return shortid.Generate()
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		msg   Message
		text  sql.NullString
		image sql.NullString
	)

	err := row.Scan(
		&msg.Id,
		&msg.SenderId,
		&msg.ReceiverId,
		&text,
		&image,
		&msg.Seen,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	if text.Valid {
		msg.Text = &text.String
	}
	if image.Valid {
		msg.Image = &image.String
	}

	return msg, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func nullString(s *string) sql.NullString {
	if blank(s) {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (db *PgRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	id, err := newId()
	if err != nil {
		return User{}, upstream("generate account id", err)
	}

	ts := now()
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (id, username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, username, email, created_at, updated_at",
		id,
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		ts,
		ts,
	)

	var u User
	if err := res.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return User{}, ErrConflict
		}
		return User{}, upstream("create account", err)
	}

	return u, nil
}

func (db *PgRepository) GetAccountById(ctx context.Context, id string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(&user.Id, &user.Username, &user.EmailAddress, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, upstream("get account", err)
	}

	return user, nil
}

func (db *PgRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, upstream("get account by email", err)
	}

	return user, nil
}

func (db *PgRepository) ListAccountsExcept(ctx context.Context, id string) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, username, created_at, updated_at FROM accounts WHERE id <> $1 ORDER BY username, id",
		id,
	)
	if err != nil {
		return nil, upstream("list accounts", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Id, &u.Username, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, upstream("scan account", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, upstream("list accounts", err)
	}

	return users, nil
}

func (db *PgRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	if err := ValidateCreateMessage(params); err != nil {
		return Message{}, err
	}

	id, err := newId()
	if err != nil {
		return Message{}, upstream("generate message id", err)
	}

	ts := now()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7) RETURNING "+messageColumns,
		id,
		params.SenderId,
		params.ReceiverId,
		nullString(params.Text),
		nullString(params.Image),
		ts,
		ts,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, upstream("create message", err)
	}

	return msg, nil
}

func (db *PgRepository) GetMessageById(ctx context.Context, id string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = $1 LIMIT 1",
		id,
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, upstream("get message", err)
	}

	return msg, nil
}

// classifyMiss resolves why a sender-scoped write matched no rows.
func (db *PgRepository) classifyMiss(ctx context.Context, id string) error {
	if _, err := db.GetMessageById(ctx, id); err != nil {
		return err
	}
	return ErrForbidden
}

func (db *PgRepository) UpdateMessageText(ctx context.Context, id, requesterId, text string) (Message, error) {
	if err := validateText(text); err != nil {
		return Message{}, err
	}

	row := db.conn.QueryRowContext(ctx,
		"UPDATE messages SET text = $3, updated_at = $4 "+
			"WHERE id = $1 AND sender_id = $2 RETURNING "+messageColumns,
		id,
		requesterId,
		text,
		now(),
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, db.classifyMiss(ctx, id)
	}
	if err != nil {
		return Message{}, upstream("update message", err)
	}

	return msg, nil
}

func (db *PgRepository) DeleteMessage(ctx context.Context, id, requesterId string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"DELETE FROM messages WHERE id = $1 AND sender_id = $2 RETURNING "+messageColumns,
		id,
		requesterId,
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, db.classifyMiss(ctx, id)
	}
	if err != nil {
		return Message{}, upstream("delete message", err)
	}

	return msg, nil
}

func (db *PgRepository) MarkMessageSeen(ctx context.Context, id string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE messages SET seen = TRUE, updated_at = CASE WHEN seen THEN updated_at ELSE $2 END "+
			"WHERE id = $1 RETURNING "+messageColumns,
		id,
		now(),
	)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, upstream("mark message seen", err)
	}

	return msg, nil
}

func (db *PgRepository) MarkAllSeenFrom(ctx context.Context, otherUserId, viewerId string) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"UPDATE messages SET seen = TRUE, updated_at = $3 "+
			"WHERE sender_id = $1 AND receiver_id = $2 AND seen = FALSE RETURNING "+messageColumns,
		otherUserId,
		viewerId,
		now(),
	)
	if err != nil {
		return nil, upstream("mark all seen", err)
	}

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, upstream("mark all seen", err)
	}

	return messages, nil
}

func (db *PgRepository) ListMessagesBetween(ctx context.Context, userA, userB string) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) "+
			"ORDER BY created_at ASC, id ASC",
		userA,
		userB,
	)
	if err != nil {
		return nil, upstream("list messages", err)
	}

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, upstream("list messages", err)
	}

	return messages, nil
}

func (db *PgRepository) ListUnseenCounts(ctx context.Context, viewerId string) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT sender_id, COUNT(*) FROM messages WHERE receiver_id = $1 AND seen = FALSE GROUP BY sender_id",
		viewerId,
	)
	if err != nil {
		return nil, upstream("list unseen counts", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			senderId string
			count    int
		)
		if err := rows.Scan(&senderId, &count); err != nil {
			return nil, upstream("scan unseen count", err)
		}
		counts[senderId] = count
	}

	if err := rows.Err(); err != nil {
		return nil, upstream("list unseen counts", err)
	}

	return counts, nil
}
