package domain

import (
	"time"
)

// PostMessageCommand carries a raw submission, the channel is parsed by the service.
type PostMessageCommand struct {
	Token   string
	Channel string
	Content string
	Code    *CodeSnippet
}

// GetMessagesCommand asks for one page of history.
// Before is exclusive, nil means "from the newest message".
type GetMessagesCommand struct {
	Token   string
	Channel string
	Before  *time.Time
	Limit   int
}
