// Package api holds the JSON representation shared by the HTTP surface, the
// live-delivery stream, the cluster bus and the command line client.
package api

import (
	"chat-broker/domain"
	"chat-broker/errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Code struct {
	Language string `json:"language"`
	Content  string `json:"content"`
}

type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Channel   string    `json:"channel"`
	Content   string    `json:"content"`
	Code      *Code     `json:"code,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type PostMessageRequest struct {
	Channel string `json:"channel"`
	Content string `json:"content"`
	Code    *Code  `json:"code,omitempty"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

type PresenceResponse struct {
	Channel string `json:"channel"`
	Count   int    `json:"count"`
}

type ChannelsResponse struct {
	Channels []PresenceResponse `json:"channels"`
}

type Error struct {
	Kind    errors.Kind `json:"kind"`
	Message string      `json:"message"`
}

type ErrorResponse struct {
	Error Error `json:"error"`
}

// Frame is exchanged over the live-delivery websocket.
// Clients send "join", "leave" and "list", the broker sends "message", "joined",
// "left", "subscriptions" and "error".
type Frame struct {
	Type     string   `json:"type,omitempty"`
	Op       string   `json:"op,omitempty"`
	Channel  string   `json:"channel,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Message  *Message `json:"message,omitempty"`
	Error    *Error   `json:"error,omitempty"`
}

const (
	OpJoin  = "join"
	OpLeave = "leave"
	OpList  = "list"

	FrameMessage       = "message"
	FrameJoined        = "joined"
	FrameLeft          = "left"
	FrameSubscriptions = "subscriptions"
	FrameError         = "error"
)

func FromDomain(m domain.Message) Message {
	res := Message{
		ID:        m.ID.String(),
		AuthorID:  m.AuthorID,
		Channel:   string(m.Channel),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Code != nil {
		res.Code = &Code{Language: m.Code.Language, Content: m.Code.Content}
	}
	return res
}

func FromDomainList(messages []domain.Message) []Message {
	return lo.Map(messages, func(item domain.Message, _ int) Message {
		return FromDomain(item)
	})
}

// ToDomain is used on the receiving side of the cluster bus.
func ToDomain(m Message) (domain.Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Message{}, err
	}
	channel, err := domain.ParseChannel(m.Channel)
	if err != nil {
		return domain.Message{}, err
	}
	res := domain.Message{
		ID:        id,
		AuthorID:  m.AuthorID,
		Channel:   channel,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.Code != nil {
		res.Code = &domain.CodeSnippet{Language: m.Code.Language, Content: m.Code.Content}
	}
	return res, nil
}

func (c *Code) ToDomain() *domain.CodeSnippet {
	if c == nil {
		return nil
	}
	return &domain.CodeSnippet{Language: c.Language, Content: c.Content}
}

func NewError(err error) Error {
	return Error{Kind: errors.KindOf(err), Message: err.Error()}
}
