// Package domain contains core concepts of the chat broker.
// This file defines live subscriptions. They are ephemeral and never persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionID identifies one live connection, whatever the transport.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Subscription exists between an explicit join and a leave or a disconnect.
type Subscription struct {
	ConnectionID  ConnectionID
	Channel       Channel
	EstablishedAt time.Time
}

// Identity is what the verifier yields for a valid bearer token.
// UserID becomes the AuthorID of submitted messages.
type Identity struct {
	UserID string
	Roles  []string
}
