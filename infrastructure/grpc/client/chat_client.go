package client

import (
	"chat-broker/api"
	"chat-broker/infrastructure/grpc/chatv1"
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ChatClient calls chat.v1.ChatService with a bearer token.
type ChatClient struct {
	conn  grpc.ClientConnInterface
	token string
}

func NewChatClient(conn grpc.ClientConnInterface, token string) *ChatClient {
	return &ChatClient{conn: conn, token: token}
}

func (c *ChatClient) withToken(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

func (c *ChatClient) PostMessage(ctx context.Context, channel, content string, code *api.Code) (api.Message, error) {
	in, err := chatv1.PostMessageRequest(channel, content, code)
	if err != nil {
		return api.Message{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.withToken(ctx), chatv1.PostMessageMethod, in, out); err != nil {
		return api.Message{}, err
	}
	return chatv1.StructToMessage(out)
}

func (c *ChatClient) GetMessages(ctx context.Context, channel string, before *time.Time, limit int) ([]api.Message, error) {
	in, err := chatv1.GetMessagesRequest(channel, before, limit)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.withToken(ctx), chatv1.GetMessagesMethod, in, out); err != nil {
		return nil, err
	}
	return chatv1.StructToMessages(out)
}

func (c *ChatClient) OnlineCount(ctx context.Context, channel string) (int, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(c.withToken(ctx), chatv1.OnlineCountMethod, wrapperspb.String(channel), out); err != nil {
		return 0, err
	}
	return int(out.GetValue()), nil
}

// Subscription is the client side of a Connect stream.
type Subscription struct {
	stream grpc.ClientStream
}

// Connect opens the live stream. Recv returns the messages of the given channels.
func (c *ChatClient) Connect(ctx context.Context, channels ...string) (*Subscription, error) {
	stream, err := c.conn.NewStream(c.withToken(ctx), &chatv1.ServiceDesc.Streams[0], chatv1.ConnectMethod)
	if err != nil {
		return nil, err
	}
	values := make([]*structpb.Value, 0, len(channels))
	for _, channel := range channels {
		values = append(values, structpb.NewStringValue(channel))
	}
	if err := stream.SendMsg(&structpb.ListValue{Values: values}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &Subscription{stream: stream}, nil
}

func (s *Subscription) Recv() (api.Message, error) {
	event := new(structpb.Struct)
	if err := s.stream.RecvMsg(event); err != nil {
		return api.Message{}, err
	}
	return chatv1.StructToMessage(event)
}
