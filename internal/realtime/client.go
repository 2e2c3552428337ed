package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ClientConfig struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBuffer:     64,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 << 10,
	}
}

// Client is a WebSocket connection with a bounded outbound queue.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	config ClientConfig
	logger zerolog.Logger
}

var _ Conn = (*Client)(nil)

// NewClient wraps an accepted connection authenticated as userID.
func NewClient(conn *websocket.Conn, userID string, config ClientConfig, logger zerolog.Logger) *Client {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultClientConfig().SendBuffer
	}
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, config.SendBuffer),
		done:   make(chan struct{}),
		config: config,
		logger: logger.With().Str("conn_id", id).Str("user_id", userID).Logger(),
	}
}

func (c *Client) ID() string { return c.id }

// UserID is the authenticated identity of the connection.
func (c *Client) UserID() string { return c.userID }

// Send queues frame without blocking; false means the client is gone or its buffer is full.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// WritePump drains the send queue and keeps the connection alive until Close or ctx.
func (c *Client) WritePump(ctx context.Context) {
	var ping <-chan time.Time
	if c.config.PingInterval > 0 {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.write(ctx, frame); err != nil {
				c.logger.Debug().Err(err).Msg("Write failed")
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, c.timeout())
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed")
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	wctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, frame)
}

func (c *Client) timeout() time.Duration {
	if c.config.WriteTimeout > 0 {
		return c.config.WriteTimeout
	}
	return DefaultClientConfig().WriteTimeout
}

// ReadLoop decodes inbound frames and hands them to handle until the peer
// disconnects or ctx ends. Malformed frames are answered with onInvalid.
func (c *Client) ReadLoop(ctx context.Context, handle func(ctx context.Context, f Frame), onInvalid func(err error)) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			onInvalid(errors.New("binary frames are not supported"))
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			onInvalid(errors.New("malformed frame"))
			continue
		}
		handle(ctx, f)
	}
}

// Close stops the pumps and closes the socket once.
func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}
