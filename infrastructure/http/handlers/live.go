package handlers

import (
	"chat-broker/api"
	"chat-broker/auth"
	"chat-broker/domain"
	"chat-broker/errors"
	"chat-broker/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	maxFrameBytes = 4 << 10
	repliesBuffer = 16
)

// LiveHandler upgrades to a websocket and streams the messages of the joined channels.
// One goroutine reads client frames, one goroutine owns every write on the socket.
type LiveHandler struct {
	log          *slog.Logger
	service      services.IChatService
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewLiveHandler(log *slog.Logger, service services.IChatService, config RouterConfig) *LiveHandler {
	writeTimeout := lo.Ternary(config.WriteTimeout > 0, config.WriteTimeout, 10*time.Second)
	pingInterval := lo.Ternary(config.PingInterval > 0, config.PingInterval, 30*time.Second)
	return &LiveHandler{
		log:     log,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(config.AllowedOrigins),
		},
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

func (h *LiveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.serve)
}

// checkOrigin accepts every origin when none is configured.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}

func (h *LiveHandler) serve(w http.ResponseWriter, r *http.Request) {
	// Authenticate before the upgrade so a bad token is a plain 401
	session, err := h.service.Connect(r.Context(), auth.TokenFrom(r.Context()))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	defer session.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	replies := make(chan api.Frame, repliesBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.write(conn, session, replies)
	}()
	go func() {
		select {
		case <-r.Context().Done():
			session.Close()
		case <-done:
		}
	}()

	// ?channel=dsa&channel=dbms joins right after the upgrade
	for _, channel := range lo.Uniq(r.URL.Query()["channel"]) {
		select {
		case replies <- h.apply(session, api.Frame{Op: api.OpJoin, Channel: channel}):
		case <-done:
			return
		}
	}

	h.read(conn, session, replies, done)
	session.Close()
	<-done
}

func (h *LiveHandler) read(conn *websocket.Conn, session *services.Session, replies chan<- api.Frame, done <-chan struct{}) {
	conn.SetReadLimit(maxFrameBytes)
	pongWait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("Websocket closed", "connection_id", session.ID, "error", err)
			}
			return
		}
		var frame api.Frame
		var reply api.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			reply = api.Frame{Type: api.FrameError, Error: &api.Error{Kind: errors.KindInvalidRequest, Message: err.Error()}}
		} else {
			reply = h.apply(session, frame)
		}
		select {
		case replies <- reply:
		case <-done:
			return
		}
	}
}

func (h *LiveHandler) apply(session *services.Session, frame api.Frame) api.Frame {
	var (
		channel domain.Channel
		err     error
		kind    string
	)
	switch frame.Op {
	case api.OpJoin:
		channel, err = session.Join(frame.Channel)
		kind = api.FrameJoined
	case api.OpLeave:
		channel, err = session.Leave(frame.Channel)
		kind = api.FrameLeft
	case api.OpList:
		channels := lo.Map(session.Subscriptions(), func(s domain.Subscription, _ int) string {
			return s.Channel.String()
		})
		return api.Frame{Type: api.FrameSubscriptions, Channels: channels}
	default:
		return api.Frame{Type: api.FrameError, Error: &api.Error{
			Kind:    errors.KindInvalidRequest,
			Message: "unknown op " + frame.Op,
		}}
	}
	if err != nil {
		e := api.NewError(err)
		return api.Frame{Type: api.FrameError, Channel: frame.Channel, Error: &e}
	}
	return api.Frame{Type: kind, Channel: channel.String()}
}

func (h *LiveHandler) write(conn *websocket.Conn, session *services.Session, replies <-chan api.Frame) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	// Any write failure unblocks the reader
	defer conn.Close()

	send := func(frame api.Frame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			h.log.Debug("Websocket write failed", "connection_id", session.ID, "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-session.Sink.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.writeTimeout))
			return
		case reply := <-replies:
			if !send(reply) {
				return
			}
		case message := <-session.Sink.Messages():
			wire := api.FromDomain(message)
			if !send(api.Frame{Type: api.FrameMessage, Channel: wire.Channel, Message: &wire}) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		}
	}
}
