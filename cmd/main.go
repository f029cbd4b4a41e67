package main

import (
	"chat-broker/auth"
	"chat-broker/contract"
	"chat-broker/infrastructure/bus"
	"chat-broker/infrastructure/grpc/server"
	"chat-broker/infrastructure/http/handlers"
	"chat-broker/internal"
	"chat-broker/repositories"
	"chat-broker/runtime"
	"chat-broker/runtime/workers"
	"chat-broker/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Broker terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Every defer (database close, bus presence cleanup) runs before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(ctx, config, log))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("message store recovery failed: %w", err)
	}

	// 4. Live delivery, local or through the cluster bus
	registry := runtime.NewRegistry(log)
	localPresence := runtime.NewLocalPresence(registry)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewHealthMonitoringWorker(log, localPresence.Snapshot, config.MetricInterval))

	var (
		publisher contract.Publisher = runtime.NewLocalPublisher(registry)
		presence  contract.Presence  = localPresence
	)
	if config.Bus == internal.BusRedis {
		client, err := bus.InitRedis(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return exitRuntime, err
		}
		defer func() { _ = client.Close() }()

		redisBus := bus.NewRedisBus(client, log, config.Node(), config.BusTimeout)
		defer func() {
			// The signal context is already cancelled here
			forgetCtx, cancel := context.WithTimeout(context.Background(), config.BusTimeout)
			defer cancel()
			if err := redisBus.Forget(forgetCtx); err != nil {
				log.Warn("Unable to clear node presence", "error", err)
			}
		}()

		// Local subscribers never wait on Redis, the forwarder ships a copy to the other nodes
		forwarder := workers.NewBusForwarder(log, publisher, redisBus, config.BusOutboxSize)
		publisher = forwarder
		presence = bus.NewClusterPresence(localPresence, redisBus)
		sup.Add(
			forwarder,
			workers.NewRelayWorker(log, redisBus, registry, messageRepository),
			workers.NewPresenceHeartbeatWorker(log, redisBus, localPresence.Snapshot, config.HeartbeatInterval),
		)
		log.Info("Cluster bus enabled", "redis", config.RedisAddr, "node_id", redisBus.NodeID())
	}

	verifier := auth.NewVerifier(config.JWTSecret, config.JWTIssuer)
	chatService := services.NewChatService(verifier, messageRepository, registry, publisher, presence,
		log, config.ConnectionBufferSize)

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	errChan := make(chan error, 2)

	// 5. gRPC Server Setup
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	chatServer := server.NewChatServer(log, chatService)
	grpcServer, healthServer := server.NewGRPCServer(log, chatServer)
	go func() {
		log.Info("Starting gRPC server", "address", grpcAddress, "at", time.Now().UTC())
		for serviceName := range grpcServer.GetServiceInfo() {
			log.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 6. HTTP Server Setup
	router := handlers.NewRouter(log, chatService, handlers.RouterConfig{
		RequestTimeout: config.RequestTimeout,
		WriteTimeout:   config.WriteTimeout,
		PingInterval:   config.PingInterval,
		AllowedOrigins: config.Origins(),
	})
	// Websocket handlers watch the request context to end on shutdown
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Store inspector, only when asked for
	var debugServer *http.Server
	if config.DebugPort > 0 {
		stats := func() map[string]any {
			res := map[string]any{"Time": time.Now().UTC().Format(time.RFC3339)}
			for channel, count := range localPresence.Snapshot() {
				res["online "+channel.String()] = count
			}
			return res
		}
		debugServer = internal.StartDebugServer(log, db, config.DebugPort, "/inspect", internal.MessageMapper, stats)
		log.Info("Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
	}

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Graceful Shutdown
	// Live connections end with their request context, in-flight appends are never cancelled.
	log.Info("Shutting down gracefully...")
	stop()
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if debugServer != nil {
		_ = debugServer.Shutdown(shutdownCtx)
	}
	chatServer.Shutdown()
	grpcServer.GracefulStop()
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(ctx context.Context, config internal.Config, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
