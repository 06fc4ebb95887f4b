package database

import "time"

type User struct {
	Id           string
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id         string
	SenderId   string
	ReceiverId string
	Text       *string
	Image      *string
	Seen       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId   string
	ReceiverId string
	Text       *string
	Image      *string
}
