package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/util"
)

// maxFrameSize bounds a single incoming frame. SDP offers are a few KiB.
const maxFrameSize = 1 << 20

// Client is one WebSocket attached to the relay.
//
// The write pump owns every write to conn. The hub closes send exactly once
// (after setting closeMsg) to make the write pump say goodbye and exit.
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	closeMsg []byte
}

func newClient(hub *Hub, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:   uuid.New().String(),
		conn: conn,
		hub:  hub,
		send: make(chan []byte, buffer),
	}
}

// shutdown asks the write pump to send a close frame and stop.
// Only the hub goroutine calls it.
func (c *Client) shutdown(code int, reason string) {
	c.closeMsg = websocket.FormatCloseMessage(code, reason)
	close(c.send)
}

// readPump forwards frames to the hub until the socket fails, then
// unregisters the client.
func (c *Client) readPump(cfg config.RelayConfig) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				util.LogDebug("client %s read error: %v", c.ID, err)
			}
			return
		}
		if !c.hub.receive(c, data) {
			return
		}
	}
}

// writePump drains send to the socket and pings on every interval.
func (c *Client) writePump(cfg config.RelayConfig) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, c.closeMsg)
				return
			}

			// Every frame, binary ones included, goes out as text.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				util.LogDebug("client %s write error: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
