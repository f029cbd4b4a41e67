package server

import (
	"chat-broker/auth"
	"chat-broker/domain"
	"chat-broker/errors"
	"chat-broker/infrastructure/grpc/chatv1"
	"chat-broker/services"
	"context"
	"log/slog"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type ChatServer struct {
	chatService services.IChatService
	log         *slog.Logger
	done        chan struct{}
	once        sync.Once
}

func NewChatServer(log *slog.Logger, chatService services.IChatService) *ChatServer {
	return &ChatServer{chatService: chatService, log: log, done: make(chan struct{})}
}

// Shutdown ends every open Connect stream so that GracefulStop can return.
func (s *ChatServer) Shutdown() {
	s.once.Do(func() { close(s.done) })
}

// PostMessage returns the stored message, the sender also receives it on
// its Connect stream when subscribed to the channel.
func (s *ChatServer) PostMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	channel, content, code := chatv1.ReadPostMessage(req)
	message, err := s.chatService.Submit(ctx, domain.PostMessageCommand{
		Token:   auth.TokenFrom(ctx),
		Channel: channel,
		Content: content,
		Code:    code,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	res, err := chatv1.MessageToStruct(message)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func (s *ChatServer) GetMessages(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	channel, before, limit, err := chatv1.ReadGetMessages(req)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	messages, err := s.chatService.History(ctx, domain.GetMessagesCommand{
		Token:   auth.TokenFrom(ctx),
		Channel: channel,
		Before:  before,
		Limit:   limit,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	res, err := chatv1.MessagesToStruct(messages)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func (s *ChatServer) OnlineCount(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	count, err := s.chatService.OnlineCount(ctx, auth.TokenFrom(ctx), req.GetValue())
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return wrapperspb.Int64(int64(count)), nil
}

// Connect subscribes the stream to the requested channels and blocks
// until the client goes away. Every subscription is removed on return.
func (s *ChatServer) Connect(req *structpb.ListValue, stream chatv1.ConnectServer) error {
	ctx := stream.Context()
	session, err := s.chatService.Connect(ctx, auth.TokenFrom(ctx))
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	defer session.Close()

	for _, value := range req.GetValues() {
		if _, err := session.Join(value.GetStringValue()); err != nil {
			return errors.MapToGRPCError(err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Client disconnected", "connection_id", session.ID)
			return nil
		case <-session.Sink.Done():
			return nil
		case <-s.done:
			return status.Error(codes.Unavailable, "broker shutting down")
		case message := <-session.Sink.Messages():
			event, err := chatv1.MessageToStruct(message)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(event); err != nil {
				s.log.Error("failed to push message to stream",
					"connection_id", session.ID,
					"channel", message.Channel,
					"error", err)
				return err
			}
		}
	}
}
