package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send when the channel has no live socket.
var ErrNotConnected = errors.New("signaling channel is not connected")

// StatusError is a dial failure with an HTTP status from the handshake,
// kept so the connection manager can classify auth and not-found failures.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signaling handshake rejected with HTTP %d", e.Code)
}

// Handler receives decoded inbound events. Handlers are invoked serially
// from the channel's single read loop, preserving server ordering.
type Handler func(*Event)

// Channel is one logical bidirectional websocket to the signaling server.
type Channel struct {
	url     string
	token   string
	handler Handler
	log     *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	gen       int
}

// NewChannel creates a channel for the given websocket endpoint. The handler
// must be set before Dial.
func NewChannel(url, token string, handler Handler, log *zap.Logger) *Channel {
	return &Channel{url: url, token: token, handler: handler, log: log}
}

// Dial establishes the websocket and starts the read loop. It returns once
// the handshake completes or fails; it does not retry (the connection
// manager owns the retry policy).
func (c *Channel) Dial(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &StatusError{Code: resp.StatusCode}
		}
		return err
	}

	c.mu.Lock()
	if c.connected {
		// A previous socket is still live; keep it and drop the new one.
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "duplicate dial")
		return nil
	}
	c.conn = conn
	c.connected = true
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	return nil
}

// IsConnected reports whether a live socket is attached.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send encodes evt and writes it to the socket.
func (c *Channel) Send(ctx context.Context, evt *Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode signaling event: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write signaling event: %w", err)
	}
	return nil
}

// Close tears down the socket. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			// A newer socket may already have replaced this one.
			if c.gen == gen && c.conn == conn {
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()
			c.log.Warn("signaling read loop ended", zap.Error(err))
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	evt, err := Decode(data)
	if err != nil {
		var unknown *UnknownEventError
		if errors.As(err, &unknown) {
			c.log.Warn("dropping unknown signaling event", zap.String("type", unknown.Type))
		} else {
			c.log.Warn("dropping invalid signaling event", zap.Error(err))
		}
		return
	}
	if c.handler != nil {
		c.handler(evt)
	}
}
