package server

import (
	"chat-broker/auth"
	"chat-broker/infrastructure/grpc/chatv1"
	"log/slog"
	"time"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// NewGRPCServer registers the chat service and the standard health service.
func NewGRPCServer(log *slog.Logger, chatServer *ChatServer) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			sdkgrpc.UnaryLoggingInterceptor(log),
			auth.UnaryInterceptor,
		),
		grpc.ChainStreamInterceptor(
			StreamLoggingInterceptor(log),
			auth.StreamInterceptor,
		),
	)
	chatv1.RegisterChatServiceServer(s, chatServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(chatv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	return s, healthServer
}

// StreamLoggingInterceptor logs the end of a server stream, the SDK only ships a unary variant.
func StreamLoggingInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		log.Debug("gRPC stream closed",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start))
		return err
	}
}
