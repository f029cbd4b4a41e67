package handlers

import (
	"chat-broker/auth"
	"chat-broker/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	AllowedOrigins []string
}

// NewRouter exposes the chat service over HTTP.
// The live-delivery endpoint stays outside the request timeout.
func NewRouter(log *slog.Logger, service services.IChatService, config RouterConfig) http.Handler {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 15 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	messages := NewMessageHandler(log, service)
	presence := NewPresenceHandler(log, service)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(config.RequestTimeout))
		messages.RegisterRoutes(r)
		presence.RegisterRoutes(r)
	})

	NewLiveHandler(log, service, config).RegisterRoutes(r)
	return r
}
