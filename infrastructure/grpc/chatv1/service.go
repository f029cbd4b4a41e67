// Package chatv1 describes the chat.v1.ChatService gRPC contract.
// Payloads are well-known protobuf types so no generated code is needed:
// messages travel as google.protobuf.Struct with the same field names as the JSON API.
package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "chat.v1.ChatService"

	PostMessageMethod = "/chat.v1.ChatService/PostMessage"
	GetMessagesMethod = "/chat.v1.ChatService/GetMessages"
	OnlineCountMethod = "/chat.v1.ChatService/OnlineCount"
	ConnectMethod     = "/chat.v1.ChatService/Connect"
)

type ChatServiceServer interface {
	PostMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetMessages(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	OnlineCount(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	Connect(req *structpb.ListValue, stream ConnectServer) error
}

// ConnectServer is the server side of the live-delivery stream.
type ConnectServer interface {
	Send(event *structpb.Struct) error
	grpc.ServerStream
}

type connectServer struct {
	grpc.ServerStream
}

func (s *connectServer) Send(event *structpb.Struct) error {
	return s.ServerStream.SendMsg(event)
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PostMessage", Handler: postMessageHandler},
		{MethodName: "GetMessages", Handler: getMessagesHandler},
		{MethodName: "OnlineCount", Handler: onlineCountHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Connect", Handler: connectHandler, ServerStreams: true},
	},
	Metadata: "chat/v1/chat.proto",
}

func postMessageHandler(srv any, ctx context.Context, dec func(any) error,
	interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).PostMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PostMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).PostMessage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getMessagesHandler(srv any, ctx context.Context, dec func(any) error,
	interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).GetMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetMessagesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).GetMessages(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func onlineCountHandler(srv any, ctx context.Context, dec func(any) error,
	interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).OnlineCount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OnlineCountMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).OnlineCount(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.ListValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServiceServer).Connect(in, &connectServer{ServerStream: stream})
}
