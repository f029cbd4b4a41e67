package handlers

import (
	"chat-broker/api"
	"chat-broker/auth"
	"chat-broker/domain"
	"chat-broker/errors"
	"chat-broker/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Request bodies larger than this cannot be a valid message.
const maxBodyBytes = 64 << 10

type MessageHandler struct {
	log     *slog.Logger
	service services.IChatService
}

func NewMessageHandler(log *slog.Logger, service services.IChatService) *MessageHandler {
	return &MessageHandler{log: log, service: service}
}

func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/channels/{channel}/messages", h.history)
	r.Post("/messages", h.submit)
}

func (h *MessageHandler) history(w http.ResponseWriter, r *http.Request) {
	cmd := domain.GetMessagesCommand{
		Token:   auth.TokenFrom(r.Context()),
		Channel: chi.URLParam(r, "channel"),
	}
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(h.log, w, r, fmt.Errorf("%w: limit must be a positive integer", errors.ErrInvalidRequest))
			return
		}
		cmd.Limit = limit
	}
	if raw := query.Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(h.log, w, r, fmt.Errorf("%w: before must be an RFC 3339 timestamp", errors.ErrInvalidRequest))
			return
		}
		cmd.Before = &before
	}

	messages, err := h.service.History(r.Context(), cmd)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MessagesResponse{Messages: api.FromDomainList(messages)})
}

func (h *MessageHandler) submit(w http.ResponseWriter, r *http.Request) {
	var body api.PostMessageRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&body); err != nil {
		writeError(h.log, w, r, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err))
		return
	}

	message, err := h.service.Submit(r.Context(), domain.PostMessageCommand{
		Token:   auth.TokenFrom(r.Context()),
		Channel: body.Channel,
		Content: body.Content,
		Code:    body.Code.ToDomain(),
	})
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromDomain(message))
}
