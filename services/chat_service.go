package services

import (
	"chat-broker/contract"
	"chat-broker/domain"
	"chat-broker/errors"
	"chat-broker/sink"
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

type IChatService interface {
	Submit(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	History(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, error)
	OnlineCount(ctx context.Context, token, channel string) (int, error)
	Channels(ctx context.Context) []ChannelPresence
	Connect(ctx context.Context, token string) (*Session, error)
}

type ChannelPresence struct {
	Channel domain.Channel
	Online  int
}

// ChatService is the single entry point of both transports.
// It authenticates every call, the transports only carry the raw token.
type ChatService struct {
	verifier             contract.IVerifier
	repository           contract.IMessageRepository
	registry             contract.IRegistry
	publisher            contract.Publisher
	presence             contract.Presence
	log                  *slog.Logger
	connectionBufferSize int
}

func NewChatService(
	verifier contract.IVerifier,
	repository contract.IMessageRepository,
	registry contract.IRegistry,
	publisher contract.Publisher,
	presence contract.Presence,
	log *slog.Logger,
	connectionBufferSize int,
) *ChatService {
	return &ChatService{
		verifier:             verifier,
		repository:           repository,
		registry:             registry,
		publisher:            publisher,
		presence:             presence,
		log:                  log,
		connectionBufferSize: connectionBufferSize,
	}
}

// Submit persists then fans out a message.
// The fan-out runs inside the append critical section of the channel,
// so every subscriber observes the channel in CreatedAt order.
// A failed fan-out never fails the submission, the message is durable.
func (s *ChatService) Submit(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	identity, err := s.verifier.Verify(cmd.Token)
	if err != nil {
		return domain.Message{}, err
	}
	channel, err := domain.ParseChannel(cmd.Channel)
	if err != nil {
		return domain.Message{}, err
	}
	draft := domain.Draft{
		Channel:  channel,
		AuthorID: identity.UserID,
		Content:  cmd.Content,
		Code:     cmd.Code,
	}
	if err := draft.Validate(); err != nil {
		return domain.Message{}, err
	}

	// A client hanging up must not abort a write already underway
	appendCtx := context.WithoutCancel(ctx)
	message, err := s.repository.Append(appendCtx, draft, func(committed domain.Message) {
		if err := s.publisher.Publish(appendCtx, committed); err != nil {
			s.log.Warn("Message stored but not fanned out",
				"channel", committed.Channel, "message_id", committed.ID, "error", err)
		}
	})
	if err != nil {
		s.log.Error("Unable to append message", "channel", channel, "error", err)
		return domain.Message{}, err
	}

	s.log.Debug("Message submitted", "channel", message.Channel, "message_id", message.ID,
		"author_id", message.AuthorID)
	return message, nil
}

// History returns one page in chronological order, it never triggers fan-out.
func (s *ChatService) History(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, error) {
	if _, err := s.verifier.Verify(cmd.Token); err != nil {
		return nil, err
	}
	channel, err := domain.ParseChannel(cmd.Channel)
	if err != nil {
		return nil, err
	}
	return s.repository.ReadPage(ctx, channel, cmd.Before, cmd.Limit)
}

// OnlineCount degrades to 0 when presence cannot be computed.
func (s *ChatService) OnlineCount(ctx context.Context, token, channel string) (int, error) {
	if _, err := s.verifier.Verify(token); err != nil {
		return 0, err
	}
	parsed, err := domain.ParseChannel(channel)
	if err != nil {
		return 0, err
	}
	return s.count(ctx, parsed), nil
}

// Channels lists the enumeration with the online count of each channel.
func (s *ChatService) Channels(ctx context.Context) []ChannelPresence {
	return lo.Map(domain.Channels(), func(c domain.Channel, _ int) ChannelPresence {
		return ChannelPresence{Channel: c, Online: s.count(ctx, c)}
	})
}

func (s *ChatService) count(ctx context.Context, channel domain.Channel) int {
	count, err := s.presence.Count(ctx, channel)
	if err != nil {
		s.log.Warn("Presence unavailable, reporting zero", "channel", channel, "error", err)
		return 0
	}
	return count
}

// Connect authenticates a live connection and allocates its outbound queue.
// The session starts with no subscription.
func (s *ChatService) Connect(_ context.Context, token string) (*Session, error) {
	identity, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:       domain.NewConnectionID(),
		Identity: identity,
		Sink:     sink.NewConnectionSink(s.connectionBufferSize),
		registry: s.registry,
		log:      s.log,
	}
	s.log.Debug("Connection established", "connection_id", session.ID, "user_id", identity.UserID)
	return session, nil
}

// Session is one live connection: Connected, then Subscribed to any number
// of channels, then Disconnected for good.
type Session struct {
	ID       domain.ConnectionID
	Identity domain.Identity
	Sink     *sink.ConnectionSink
	registry contract.IRegistry
	log      *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (s *Session) Join(channel string) (domain.Channel, error) {
	parsed, err := domain.ParseChannel(channel)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.ErrSessionClosed
	}
	s.registry.Join(s.ID, parsed, s.Sink)
	return parsed, nil
}

func (s *Session) Leave(channel string) (domain.Channel, error) {
	parsed, err := domain.ParseChannel(channel)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.ErrSessionClosed
	}
	s.registry.Leave(s.ID, parsed)
	return parsed, nil
}

// Subscriptions is read from the registry, a closed session has none.
func (s *Session) Subscriptions() []domain.Subscription {
	return s.registry.Subscriptions(s.ID)
}

// Close is terminal and idempotent: every subscription of the connection is removed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.registry.LeaveAll(s.ID)
	s.Sink.Close()
	s.log.Debug("Connection closed", "connection_id", s.ID)
}
