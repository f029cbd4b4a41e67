package main

import (
	"bytes"
	"chat-broker/api"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// brokerClient talks to the HTTP surface of the broker.
type brokerClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newBrokerClient(baseURL, token string) *brokerClient {
	return &brokerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *brokerClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &payload)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		var failure api.ErrorResponse
		if err := json.NewDecoder(response.Body).Decode(&failure); err != nil {
			return fmt.Errorf("broker answered %s", response.Status)
		}
		return fmt.Errorf("%s: %s", failure.Error.Kind, failure.Error.Message)
	}
	return json.NewDecoder(response.Body).Decode(out)
}

func (c *brokerClient) Post(ctx context.Context, body api.PostMessageRequest) (api.Message, error) {
	var res api.Message
	err := c.do(ctx, http.MethodPost, "/messages", body, &res)
	return res, err
}

func (c *brokerClient) History(ctx context.Context, channel string, before string, limit int) ([]api.Message, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		query.Set("before", before)
	}
	var res api.MessagesResponse
	path := "/channels/" + url.PathEscape(channel) + "/messages?" + query.Encode()
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res.Messages, err
}

func (c *brokerClient) Channels(ctx context.Context) ([]api.PresenceResponse, error) {
	var res api.ChannelsResponse
	err := c.do(ctx, http.MethodGet, "/channels", nil, &res)
	return res.Channels, err
}

// Watch streams frames of the given channels until ctx is done or the socket closes.
func (c *brokerClient) Watch(ctx context.Context, channels []string, onFrame func(api.Frame)) error {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/ws"
	query := url.Values{"channel": channels}
	wsURL.RawQuery = query.Encode()

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, response, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if response != nil {
			return fmt.Errorf("websocket handshake: %s", response.Status)
		}
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		var frame api.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		onFrame(frame)
	}
}
