package handlers

import (
	"chat-broker/api"
	"chat-broker/auth"
	"chat-broker/services"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

type PresenceHandler struct {
	log     *slog.Logger
	service services.IChatService
}

func NewPresenceHandler(log *slog.Logger, service services.IChatService) *PresenceHandler {
	return &PresenceHandler{log: log, service: service}
}

func (h *PresenceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/presence/{channel}", h.count)
	r.Get("/channels", h.channels)
}

func (h *PresenceHandler) count(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	count, err := h.service.OnlineCount(r.Context(), auth.TokenFrom(r.Context()), channel)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.PresenceResponse{Channel: channel, Count: count})
}

// channels is public, it only exposes the fixed enumeration and counts.
func (h *PresenceHandler) channels(w http.ResponseWriter, r *http.Request) {
	channels := lo.Map(h.service.Channels(r.Context()), func(c services.ChannelPresence, _ int) api.PresenceResponse {
		return api.PresenceResponse{Channel: c.Channel.String(), Count: c.Online}
	})
	writeJSON(w, http.StatusOK, api.ChannelsResponse{Channels: channels})
}
