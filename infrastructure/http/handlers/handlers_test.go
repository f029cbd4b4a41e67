package handlers

import (
	"bytes"
	"chat-broker/api"
	"chat-broker/auth"
	"chat-broker/errors"
	"chat-broker/repositories"
	"chat-broker/runtime"
	"chat-broker/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server   *httptest.Server
	verifier *auth.Verifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repository, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)

	verifier := auth.NewVerifier("http-secret", auth.DefaultIssuer)
	registry := runtime.NewRegistry(log)
	service := services.NewChatService(verifier, repository, registry,
		runtime.NewLocalPublisher(registry), runtime.NewLocalPresence(registry), log, 32)

	server := httptest.NewServer(NewRouter(log, service, RouterConfig{PingInterval: time.Second}))
	t.Cleanup(server.Close)
	return fixture{server: server, verifier: verifier}
}

func (f fixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := f.verifier.Issue(userID, nil, time.Hour)
	require.NoError(t, err)
	return token
}

func (f fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	request, err := http.NewRequest(method, f.server.URL+path, &payload)
	require.NoError(t, err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func decode[T any](t *testing.T, response *http.Response) T {
	t.Helper()
	var res T
	require.NoError(t, json.NewDecoder(response.Body).Decode(&res))
	return res
}

func (f fixture) dial(t *testing.T, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws" + query
	conn, response, err := websocket.DefaultDialer.Dial(wsURL, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, response, err
}

func readFrame(t *testing.T, conn *websocket.Conn) api.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame api.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestPostMessage_Then_History(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	token := f.token(t, "U2")

	// Given a posted message
	response := f.do(t, http.MethodPost, "/messages", token, api.PostMessageRequest{
		Channel: "dsa",
		Content: "hello",
		Code:    &api.Code{Language: "python", Content: "print(1)"},
	})
	req.Equal(http.StatusCreated, response.StatusCode)
	posted := decode[api.Message](t, response)
	req.Equal("U2", posted.AuthorID)
	req.Equal("dsa", posted.Channel)
	req.NotEmpty(posted.ID)
	req.Equal("python", posted.Code.Language)

	// Then it is the last message of the history
	response = f.do(t, http.MethodGet, "/channels/dsa/messages?limit=50", token, nil)
	req.Equal(http.StatusOK, response.StatusCode)
	history := decode[api.MessagesResponse](t, response)
	req.NotEmpty(history.Messages)
	last := history.Messages[len(history.Messages)-1]
	req.Equal(posted.ID, last.ID)
	req.Equal("hello", last.Content)
	req.True(posted.CreatedAt.Equal(last.CreatedAt))
}

func TestHistory_Pagination_With_Before(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	token := f.token(t, "U1")

	for i := 0; i < 5; i++ {
		response := f.do(t, http.MethodPost, "/messages", token, api.PostMessageRequest{
			Channel: "career", Content: fmt.Sprintf("m%d", i),
		})
		req.Equal(http.StatusCreated, response.StatusCode)
	}

	page := decode[api.MessagesResponse](t, f.do(t, http.MethodGet, "/channels/career/messages?limit=2", token, nil))
	req.Len(page.Messages, 2)
	req.Equal("m3", page.Messages[0].Content)
	req.Equal("m4", page.Messages[1].Content)

	before := url.QueryEscape(page.Messages[0].CreatedAt.Format(time.RFC3339Nano))
	page = decode[api.MessagesResponse](t, f.do(t, http.MethodGet, "/channels/career/messages?limit=2&before="+before, token, nil))
	req.Len(page.Messages, 2)
	req.Equal("m1", page.Messages[0].Content)
	req.Equal("m2", page.Messages[1].Content)
}

func TestErrors_Map_To_Status(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "U1")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   errors.Kind
	}{
		{"missing token", http.MethodGet, "/channels/dsa/messages", "", nil, http.StatusUnauthorized, errors.KindAuthMissing},
		{"forged token", http.MethodGet, "/channels/dsa/messages", "forged", nil, http.StatusUnauthorized, errors.KindAuthInvalid},
		{"unknown channel", http.MethodGet, "/channels/random/messages", token, nil, http.StatusBadRequest, errors.KindUnknownChannel},
		{"bad limit", http.MethodGet, "/channels/dsa/messages?limit=abc", token, nil, http.StatusBadRequest, errors.KindInvalidRequest},
		{"bad cursor", http.MethodGet, "/channels/dsa/messages?before=yesterday", token, nil, http.StatusBadRequest, errors.KindInvalidRequest},
		{"empty content", http.MethodPost, "/messages", token, api.PostMessageRequest{Channel: "dsa"}, http.StatusBadRequest, errors.KindContentInvalid},
		{"post unknown channel", http.MethodPost, "/messages", token, api.PostMessageRequest{Channel: "x", Content: "hi"}, http.StatusBadRequest, errors.KindUnknownChannel},
		{"post without token", http.MethodPost, "/messages", "", api.PostMessageRequest{Channel: "dsa", Content: "hi"}, http.StatusUnauthorized, errors.KindAuthMissing},
		{"presence unknown channel", http.MethodGet, "/presence/x", token, nil, http.StatusBadRequest, errors.KindUnknownChannel},
		{"presence without token", http.MethodGet, "/presence/dsa", "", nil, http.StatusUnauthorized, errors.KindAuthMissing},
		{"presence forged token", http.MethodGet, "/presence/dsa", "forged", nil, http.StatusUnauthorized, errors.KindAuthInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			response := f.do(t, tt.method, tt.path, tt.token, tt.body)
			req.Equal(tt.status, response.StatusCode)
			body := decode[api.ErrorResponse](t, response)
			req.Equal(tt.kind, body.Error.Kind)
		})
	}
}

func TestHealthz(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	response := f.do(t, http.MethodGet, "/healthz", "", nil)
	req.Equal(http.StatusOK, response.StatusCode)
}

func TestLive_Delivery_Over_Websocket(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given U1 connected and subscribed to dsa
	header := http.Header{"Authorization": []string{"Bearer " + f.token(t, "U1")}}
	conn, _, err := f.dial(t, "", header)
	req.NoError(err)
	req.NoError(conn.WriteJSON(api.Frame{Op: api.OpJoin, Channel: "dsa"}))
	joined := readFrame(t, conn)
	req.Equal(api.FrameJoined, joined.Type)
	req.Equal("dsa", joined.Channel)

	presence := decode[api.PresenceResponse](t, f.do(t, http.MethodGet, "/presence/dsa", f.token(t, "U2"), nil))
	req.Equal(1, presence.Count)

	// When U2 posts to dsa
	response := f.do(t, http.MethodPost, "/messages", f.token(t, "U2"), api.PostMessageRequest{Channel: "dsa", Content: "hello"})
	req.Equal(http.StatusCreated, response.StatusCode)
	posted := decode[api.Message](t, response)

	// Then U1 receives it
	frame := readFrame(t, conn)
	req.Equal(api.FrameMessage, frame.Type)
	req.NotNil(frame.Message)
	req.Equal(posted.ID, frame.Message.ID)
	req.Equal("U2", frame.Message.AuthorID)
	req.Equal("hello", frame.Message.Content)
}

func TestLive_Join_Errors_And_Leave(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// The token travels as a query parameter like a browser would send it
	conn, _, err := f.dial(t, "?channel=dbms&access_token="+f.token(t, "U1"), nil)
	req.NoError(err)
	req.Equal(api.FrameJoined, readFrame(t, conn).Type)

	req.NoError(conn.WriteJSON(api.Frame{Op: api.OpJoin, Channel: "memes"}))
	frame := readFrame(t, conn)
	req.Equal(api.FrameError, frame.Type)
	req.Equal(errors.KindUnknownChannel, frame.Error.Kind)

	req.NoError(conn.WriteJSON(api.Frame{Op: "shout"}))
	frame = readFrame(t, conn)
	req.Equal(api.FrameError, frame.Type)
	req.Equal(errors.KindInvalidRequest, frame.Error.Kind)

	req.NoError(conn.WriteJSON(api.Frame{Op: api.OpLeave, Channel: "dbms"}))
	frame = readFrame(t, conn)
	req.Equal(api.FrameLeft, frame.Type)

	channels := decode[api.ChannelsResponse](t, f.do(t, http.MethodGet, "/channels", "", nil))
	req.Len(channels.Channels, 6)
	for _, c := range channels.Channels {
		req.Zero(c.Count, c.Channel)
	}
}

func TestLive_Lists_Subscriptions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given a connection joined to dsa and dbms
	conn, _, err := f.dial(t, "?channel=dsa&channel=dbms&access_token="+f.token(t, "U1"), nil)
	req.NoError(err)
	defer conn.Close()
	req.Equal(api.FrameJoined, readFrame(t, conn).Type)
	req.Equal(api.FrameJoined, readFrame(t, conn).Type)

	// When it asks for its subscriptions
	req.NoError(conn.WriteJSON(api.Frame{Op: api.OpList}))

	// Then both channels are listed
	frame := readFrame(t, conn)
	req.Equal(api.FrameSubscriptions, frame.Type)
	req.ElementsMatch([]string{"dsa", "dbms"}, frame.Channels)

	req.NoError(conn.WriteJSON(api.Frame{Op: api.OpLeave, Channel: "dsa"}))
	req.Equal(api.FrameLeft, readFrame(t, conn).Type)
	req.NoError(conn.WriteJSON(api.Frame{Op: api.OpList}))
	req.Equal([]string{"dbms"}, readFrame(t, conn).Channels)
}

func TestLive_Rejects_Missing_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, response, err := f.dial(t, "", nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, response.StatusCode)
}

func TestLive_Disconnect_Removes_Presence(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	token := f.token(t, "U1")

	conn, _, err := f.dial(t, "?channel=general&access_token="+token, nil)
	req.NoError(err)
	req.Equal(api.FrameJoined, readFrame(t, conn).Type)

	req.NoError(conn.Close())

	req.Eventually(func() bool {
		presence := decode[api.PresenceResponse](t, f.do(t, http.MethodGet, "/presence/general", token, nil))
		return presence.Count == 0
	}, 2*time.Second, 20*time.Millisecond)
}
