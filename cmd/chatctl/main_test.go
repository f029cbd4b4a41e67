package main

import (
	"bytes"
	"chat-broker/api"
	"chat-broker/auth"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

func TestTokenCommand(t *testing.T) {
	req := require.New(t)
	config := Config{JWTSecret: "cli-secret", JWTIssuer: auth.DefaultIssuer}

	var out bytes.Buffer
	req.NoError(tokenCommand(config, []string{"-user", "U1", "-roles", "student,mentor"}, &out))

	identity, err := auth.NewVerifier("cli-secret", auth.DefaultIssuer).Verify(strings.TrimSpace(out.String()))
	req.NoError(err)
	req.Equal("U1", identity.UserID)
	req.Equal([]string{"student", "mentor"}, identity.Roles)

	req.Error(tokenCommand(config, nil, &out))
	req.Error(tokenCommand(Config{}, []string{"-user", "U1"}, &out))
}

func TestHistoryCommand_Prints_Table(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/channels/dsa/messages", r.URL.Path)
		req.Equal("2", r.URL.Query().Get("limit"))
		req.Equal("Bearer t0k3n", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(api.MessagesResponse{Messages: []api.Message{
			{ID: "1", AuthorID: "U1", Channel: "dsa", Content: "first", CreatedAt: time.Unix(1, 0).UTC()},
			{ID: "2", AuthorID: "U2", Channel: "dsa", Content: "second", CreatedAt: time.Unix(2, 0).UTC()},
		}})
	}))
	defer server.Close()

	var out bytes.Buffer
	client := newBrokerClient(server.URL, "t0k3n")
	req.NoError(historyCommand(context.Background(), client, []string{"-channel", "dsa", "-limit", "2"}, &out))

	req.Contains(out.String(), "first")
	req.Contains(out.String(), "second")
	req.Contains(out.String(), "next page: -before 1970-01-01T00:00:01Z")
}

func TestBrokerClient_Surfaces_Error_Kind(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.Error{Kind: "auth.missing", Message: "authorization token is missing"}})
	}))
	defer server.Close()

	_, err := newBrokerClient(server.URL, "").Post(context.Background(), api.PostMessageRequest{Channel: "dsa", Content: "x"})
	req.ErrorContains(err, "auth.missing")
}

func TestRenderFrame(t *testing.T) {
	req := require.New(t)
	color.Disable()

	line := renderFrame(api.Frame{Type: api.FrameMessage, Message: &api.Message{
		AuthorID: "U2", Channel: "dsa", Content: "hello", CreatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		Code: &api.Code{Language: "go", Content: "x := 1"},
	}})
	req.Contains(line, "10:00:00.000 #dsa U2: hello")
	req.Contains(line, "```go\nx := 1\n```")

	req.Equal("joined #dbms", renderFrame(api.Frame{Type: api.FrameJoined, Channel: "dbms"}))
	req.Equal("error validation.unknown_channel: unknown channel",
		renderFrame(api.Frame{Type: api.FrameError, Error: &api.Error{Kind: "validation.unknown_channel", Message: "unknown channel"}}))
}
