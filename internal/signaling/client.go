// Package signaling is the client side of the relay connection: it carries
// JSON envelopes between the session controller and the relay.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duocall/internal/protocol"
	"github.com/1ureka/duocall/internal/util"
)

// ErrNotOpen is returned by Send once the socket has closed.
var ErrNotOpen = errors.New("signaling socket is not open")

const writeWait = 10 * time.Second

// Client is a single WebSocket connection to the relay.
//
// Writes are serialized by a mutex. Incoming text frames are delivered on
// Inbound in arrival order; the channel is closed when the socket ends.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex

	inbound chan []byte
	done    chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects to the relay at url, e.g. ws://127.0.0.1:3000/ws.
func Dial(ctx context.Context, url string, handshakeTimeout time.Duration) (*Client, error) {
	dialer := *websocket.DefaultDialer
	if handshakeTimeout > 0 {
		dialer.HandshakeTimeout = handshakeTimeout
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	c := &Client{
		conn:    conn,
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Inbound returns the channel of received frames.
func (c *Client) Inbound() <-chan []byte {
	return c.inbound
}

// Err returns the error that ended the read loop, if any. It is set before
// Inbound is closed, and stays nil after a local Close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Send writes one text frame. It fails with ErrNotOpen after Close or after
// the relay has dropped the connection.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrNotOpen
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotOpen, err)
	}
	return nil
}

// SendJSON encodes v and sends it as one frame.
func (c *Client) SendJSON(v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Close sends a normal close frame and releases the socket. Safe to call
// multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()

		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// readLoop pumps frames into inbound until the socket fails.
func (c *Client) readLoop() {
	defer close(c.inbound)

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					util.LogWarning("relay connection lost: %v", err)
				}
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
			}
			c.closeOnce.Do(func() {
				close(c.done)
				_ = c.conn.Close()
			})
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		select {
		case c.inbound <- data:
		case <-c.done:
			return
		}
	}
}
