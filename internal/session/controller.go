// Package session implements the client side of a call: one controller per
// process owns the local media, the peer connection and the relay socket,
// and drives offer/answer/ICE through an explicit state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/protocol"
	"github.com/1ureka/duocall/internal/transport"
	"github.com/1ureka/duocall/internal/util"
)

var (
	// ErrClosed is returned by commands issued after the session ended.
	ErrClosed = errors.New("session closed")
	// ErrRelayClosed is returned by Run when the relay drops the socket.
	ErrRelayClosed = errors.New("relay connection closed")
	// ErrNoLocalMedia is returned by media commands before media is acquired.
	ErrNoLocalMedia = errors.New("no local media")
)

// Options wires a Controller to its collaborators.
type Options struct {
	Role     config.Role // caller or receiver
	Config   config.SessionConfig
	Signaler Signaler
	Media    MediaSource
	NewPeer  PeerFactory
}

// Controller is a single call session.
//
// Everything below the "loop state" marker is owned by the Run goroutine.
// Peer callbacks, timers and public commands never touch it directly; they
// post events instead.
type Controller struct {
	role    config.Role
	cfg     config.SessionConfig
	sig     Signaler
	src     MediaSource
	newPeer PeerFactory

	events  chan any
	done    chan struct{}
	started atomic.Bool

	mu        sync.RWMutex
	snap      Status
	listeners []func(Status)
	handlers  map[protocol.Type]HandlerFunc

	// loop state
	state        State
	statusText   string
	local        *media.LocalMedia
	peer         Peer
	gen          int // bumped whenever the peer is replaced
	pairing      int // bumped whenever the partner leaves
	paired       bool
	observer     bool // admitted beyond the pair; never negotiates
	remoteTracks []transport.RemoteTrack
	queue        candidateQueue
	pendingOffer *protocol.Offer
	offerTimer   *time.Timer
	mediaTimer   *time.Timer
	deviceIdx    int
	exit         bool
	exitErr      error
}

// Event types posted to the loop.
type (
	mediaResult struct {
		local *media.LocalMedia
		err   error
	}
	mediaTimeout   struct{}
	offerDue       struct{ pairing int }
	localCandidate struct {
		gen       int
		candidate webrtc.ICECandidateInit
	}
	iceChange struct {
		gen   int
		state webrtc.ICEConnectionState
	}
	trackAdded struct {
		gen   int
		track transport.RemoteTrack
	}
	command struct {
		fn    func() error
		reply chan error
	}
)

// New validates opts and returns an idle controller.
func New(opts Options) (*Controller, error) {
	switch opts.Role {
	case config.RoleCaller, config.RoleReceiver:
	default:
		return nil, fmt.Errorf("invalid session role %q", opts.Role)
	}
	if opts.Signaler == nil || opts.Media == nil || opts.NewPeer == nil {
		return nil, errors.New("session needs a signaler, a media source and a peer factory")
	}

	buffer := opts.Config.EventBuffer
	if buffer <= 0 {
		buffer = 64
	}

	c := &Controller{
		role:     opts.Role,
		cfg:      opts.Config,
		sig:      opts.Signaler,
		src:      opts.Media,
		newPeer:  opts.NewPeer,
		events:   make(chan any, buffer),
		done:     make(chan struct{}),
		handlers: make(map[protocol.Type]HandlerFunc),
		state:    StateIdle,
	}
	c.snap = c.status()
	return c, nil
}

// Run acquires local media and processes relay frames and peer events until
// EndCall, ctx cancellation or loss of the relay socket. It may be called
// once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	defer close(c.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.transition(StateAwaitingMedia)
	c.setStatus("Requesting camera and microphone...")
	go func() {
		local, err := c.src.Acquire(ctx, "")
		c.post(mediaResult{local: local, err: err})
	}()

	inbound := c.sig.Inbound()
	for {
		c.publish()
		if c.exit {
			return c.exitErr
		}

		select {
		case data, ok := <-inbound:
			if !ok {
				util.LogWarning("relay connection closed")
				c.exitErr = ErrRelayClosed
				c.teardown()
				continue
			}
			c.handleFrame(data)

		case ev := <-c.events:
			c.handleEvent(ev)

		case <-ctx.Done():
			c.teardown()
		}
	}
}

func (c *Controller) handleEvent(ev any) {
	switch ev := ev.(type) {
	case mediaResult:
		c.onMedia(ev.local, ev.err)

	case mediaTimeout:
		c.mediaTimer = nil
		if c.pendingOffer != nil && c.local == nil {
			util.LogError("local media still not available after %s, dropping offer", c.cfg.MediaWait())
			c.pendingOffer = nil
		}

	case offerDue:
		if ev.pairing == c.pairing {
			c.createOffer()
		}

	case localCandidate:
		if ev.gen == c.gen {
			c.send(protocol.NewCandidate(ev.candidate))
		}

	case iceChange:
		if ev.gen == c.gen {
			c.onICEState(ev.state)
		}

	case trackAdded:
		if ev.gen == c.gen {
			c.remoteTracks = append(c.remoteTracks, ev.track)
			util.LogInfo("receiving remote %s track", ev.track.Kind())
		}

	case command:
		ev.reply <- ev.fn()

	default:
		util.LogDebug("unknown session event %T", ev)
	}
}

// post hands an event to the loop, or drops it once the loop has exited.
func (c *Controller) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (c *Controller) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.events <- command{fn: fn, reply: reply}:
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// transition moves to the given state if the transition table allows it.
func (c *Controller) transition(to State) bool {
	if err := checkTransition(c.state, to); err != nil {
		util.LogWarning("%v", err)
		return false
	}
	if c.state != to {
		util.LogDebug("session state: %s -> %s", c.state, to)
		c.state = to
	}
	return true
}

func (c *Controller) setStatus(text string) {
	if text != c.statusText {
		util.LogInfo("%s", text)
		c.statusText = text
	}
}

// teardown releases every resource and ends the loop.
func (c *Controller) teardown() {
	c.stopTimers()
	c.closePeer()
	if c.local != nil {
		c.local.Stop()
	}
	if err := c.sig.Close(); err != nil {
		util.LogDebug("close signaling: %v", err)
	}
	c.transition(StateClosed)
	c.setStatus("Call ended")
	c.exit = true
}

func (c *Controller) stopTimers() {
	if c.offerTimer != nil {
		c.offerTimer.Stop()
		c.offerTimer = nil
	}
	if c.mediaTimer != nil {
		c.mediaTimer.Stop()
		c.mediaTimer = nil
	}
}
