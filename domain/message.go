// Package domain contains core concepts of the chat broker.
// This file defines Message records and the rules a submission must follow.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxContentLength      = 2000
	MaxCodeLength         = 10000
	MaxCodeLanguageLength = 32
	DefaultPageLimit      = 50
	MaxPageLimit          = 100
)

// Message represents an immutable chat record.
// ID and CreatedAt are assigned once by the store, nothing mutates them afterwards.
type Message struct {
	ID        uuid.UUID // UUIDv7, creation ordered
	AuthorID  string
	Channel   Channel
	Content   string
	Code      *CodeSnippet
	CreatedAt time.Time
}

// CodeSnippet is an optional inline code block attached to a message.
type CodeSnippet struct {
	Language string
	Content  string
}

// ClampLimit applies the default page size and the upper bound.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return limit
	}
}
