// Package client wraps the daemon's HTTP control API over the session's
// Unix domain socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/mkravets/vox/internal/api"
)

// Client is a typed HTTP client for the daemon control socket.
type Client struct {
	http *http.Client
}

// New returns a client dialing the daemon's Unix domain socket.
func New(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conversations lists conversation summaries.
func (c *Client) Conversations(ctx context.Context) ([]api.ConversationView, error) {
	var resp struct {
		Conversations []api.ConversationView `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Messages lists the message view for a conversation, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID int64) ([]api.MessageView, error) {
	var resp struct {
		Messages []api.MessageView `json:"messages"`
	}
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Send queues a message and returns its optimistic placeholder view.
func (c *Client) Send(ctx context.Context, conversationID int64, text string) (*api.MessageView, error) {
	var view api.MessageView
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, api.SendMessageRequest{Text: text}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// SetOpen marks a conversation open or closed on screen.
func (c *Client) SetOpen(ctx context.Context, conversationID int64, open bool) error {
	path := fmt.Sprintf("/api/conversations/%d/open", conversationID)
	return c.do(ctx, http.MethodPost, path, api.OpenRequest{Open: &open}, nil)
}

// Call fetches the live call record.
func (c *Client) Call(ctx context.Context) (*api.CallView, error) {
	var view api.CallView
	if err := c.do(ctx, http.MethodGet, "/api/call", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// StartCall starts an outgoing call.
func (c *Client) StartCall(ctx context.Context, conversationID int64, video bool) error {
	return c.do(ctx, http.MethodPost, "/api/call/start",
		api.StartCallRequest{ConversationID: conversationID, IsVideo: video}, nil)
}

// AcceptCall accepts the ringing call.
func (c *Client) AcceptCall(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/call/accept", nil, nil)
}

// RejectCall rejects the ringing call.
func (c *Client) RejectCall(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/call/reject", nil, nil)
}

// EndCall hangs up.
func (c *Client) EndCall(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/call/end", nil, nil)
}
