package relay

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/protocol"
	"github.com/1ureka/duocall/internal/util"
)

type frame struct {
	from *Client
	data []byte
}

// Hub owns the registry. Every registration, departure and relayed frame
// passes through its Run goroutine, so fan-out never races with membership
// changes.
type Hub struct {
	cfg      config.RelayConfig
	stats    *util.Stats
	registry *Registry

	register   chan *Client
	unregister chan *Client
	inbound    chan frame
	queries    chan func(*Registry)
	done       chan struct{}
}

// NewHub creates a hub. Call Run to start it.
func NewHub(cfg config.RelayConfig, stats *util.Stats) *Hub {
	return &Hub{
		cfg:        cfg,
		stats:      stats,
		registry:   NewRegistry(cfg.MaxPeers),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan frame, 64),
		queries:    make(chan func(*Registry)),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled, then closes every socket
// with a going-away frame.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case f := <-h.inbound:
			h.handleFrame(f.from, f.data)

		case q := <-h.queries:
			q(h.registry)

		case <-ctx.Done():
			for _, c := range h.registry.All() {
				c.shutdown(websocket.CloseGoingAway, "server shutting down")
			}
			return
		}
	}
}

// Count returns the number of connected peers, or 0 once the hub stopped.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.queries <- func(r *Registry) { reply <- r.Len() }:
		return <-reply
	case <-h.done:
		return 0
	}
}

// join hands a freshly upgraded client to the hub. It returns false when the
// hub is no longer running.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) receive(c *Client, data []byte) bool {
	select {
	case h.inbound <- frame{from: c, data: data}:
		return true
	case <-h.done:
		return false
	}
}

// ---------------------------------------------------------------------------
// Event handlers (hub goroutine only)
// ---------------------------------------------------------------------------

func (h *Hub) handleRegister(c *Client) {
	if h.registry.Add(c) {
		h.stats.AddConn()
		n := h.registry.Len()
		util.LogInfo("client %s connected (%d/%d)", c.ID, n, h.cfg.MaxPeers)

		h.deliver(c, h.lifecycle(protocol.TypeConnectionStatus, n))
		joined := h.lifecycle(protocol.TypePeerJoined, n)
		for _, other := range h.registry.Others(c) {
			h.deliver(other, joined)
		}
		for _, o := range h.registry.Observers() {
			h.deliver(o, joined)
		}
		return
	}

	switch h.cfg.Overflow {
	case config.OverflowObserve:
		h.registry.AddObserver(c)
		h.stats.AddConn()
		util.LogInfo("client %s joined as observer (room is full)", c.ID)
		// The observer's own count includes every socket, so it always exceeds
		// the pair and the client never treats itself as paired.
		total := h.registry.Len() + len(h.registry.Observers())
		h.deliver(c, h.lifecycle(protocol.TypeConnectionStatus, total))

	default:
		h.stats.AddReject()
		util.LogWarning("client %s rejected: room is full", c.ID)
		c.shutdown(websocket.ClosePolicyViolation, "room is full")
	}
}

func (h *Hub) handleUnregister(c *Client) {
	peer, found := h.registry.Remove(c)
	if !found {
		return
	}
	c.shutdown(websocket.CloseNormalClosure, "")
	h.stats.RemoveConn()

	if !peer {
		util.LogInfo("observer %s disconnected", c.ID)
		return
	}

	n := h.registry.Len()
	util.LogInfo("client %s disconnected (%d/%d)", c.ID, n, h.cfg.MaxPeers)

	left := h.lifecycle(protocol.TypePeerLeft, n)
	for _, other := range h.registry.All() {
		h.deliver(other, left)
	}
}

// handleFrame forwards a peer's frame, byte for byte, to every other peer.
func (h *Hub) handleFrame(from *Client, data []byte) {
	if !h.registry.IsPeer(from) {
		h.stats.AddDropped()
		util.LogDebug("dropping frame from non-peer %s", from.ID)
		return
	}

	typ, err := protocol.PeekType(data)
	if err != nil {
		h.stats.AddDropped()
		util.LogWarning("dropping frame from %s: %v", from.ID, err)
		return
	}

	others := h.registry.Others(from)
	if len(others) == 0 {
		h.stats.AddDropped()
		util.LogDebug("no partner for %s message from %s", typ, from.ID)
		return
	}

	util.LogDebug("relaying %s from %s", typ, from.ID)
	for _, to := range others {
		if h.deliver(to, data) {
			h.stats.AddRelayed(len(data))
		}
	}
}

// deliver queues data on c's write pump without blocking the hub.
func (h *Hub) deliver(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		h.stats.AddDropped()
		util.LogWarning("send buffer full for %s, dropping frame", c.ID)
		return false
	}
}

func (h *Hub) lifecycle(t protocol.Type, n int) []byte {
	// Status holds only a string and an int; encoding cannot fail.
	data, _ := protocol.Encode(protocol.NewStatus(t, n))
	return data
}
