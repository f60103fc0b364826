// Package feed receives live telemetry as JSON messages over a websocket.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

// DefaultReconnectDelay is the pause between two connection attempts.
const DefaultReconnectDelay = 2 * time.Second

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) func(c *Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("feed", c.url))
	}
}

// WithReconnectDelay sets the pause between two connection attempts
func WithReconnectDelay(d time.Duration) func(c *Client) {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithDialer replaces websocket.DefaultDialer
func WithDialer(d *websocket.Dialer) func(c *Client) {
	return func(c *Client) {
		c.dialer = d
	}
}

// Client keeps the most recent telemetry message received from a websocket feed.
// Each text message is one JSON encoded telemetry.Telemetry.
type Client struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	mu     sync.RWMutex
	latest *telemetry.Telemetry

	logger *slog.Logger
}

var _ telemetry.Provider = (*Client)(nil)

// New creates a client for the feed at url with a discard logger
func New(url string, options ...func(c *Client)) *Client {
	c := Client{
		url:            url,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: DefaultReconnectDelay,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Latest returns a copy of the most recent message, or telemetry.ErrNoTelemetry.
func (c *Client) Latest(_ context.Context) (*telemetry.Telemetry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.latest == nil {
		return nil, telemetry.ErrNoTelemetry
	}
	t := *c.latest
	return &t, nil
}

// Run connects to the feed and reads messages until ctx is done, reconnecting
// whenever the connection drops. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Warn("telemetry feed disconnected", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing: %w", err)
	}
	defer conn.Close()

	c.logger.Info("telemetry feed connected")

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close() // unblocks ReadMessage
		case <-done:
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}

		if err := c.handle(message); err != nil {
			c.logger.Warn("error decoding telemetry", slog.String("error", err.Error()))
		}
	}
}

func (c *Client) handle(message []byte) error {
	var t telemetry.Telemetry
	if err := json.Unmarshal(message, &t); err != nil {
		return err
	}
	if !t.HasFix() && t.Altitude == nil && t.GroundSpeed == nil {
		return errors.New("message carries no telemetry")
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	c.mu.Lock()
	c.latest = &t
	c.mu.Unlock()

	c.logger.Debug("telemetry received", slog.Time("timestamp", t.Timestamp))
	return nil
}
