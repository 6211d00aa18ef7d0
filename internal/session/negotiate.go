package session

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/protocol"
	"github.com/1ureka/duocall/internal/transport"
	"github.com/1ureka/duocall/internal/util"
)

const statusObserving = "Room is full, observing"

// ---------------------------------------------------------------------------
// Inbound frames
// ---------------------------------------------------------------------------

func (c *Controller) handleFrame(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		util.LogWarning("ignoring relay frame: %v", err)
		return
	}

	switch env.Type {
	case protocol.TypeConnectionStatus, protocol.TypePeerJoined, protocol.TypePeerLeft:
		var st protocol.Status
		if err := env.Unmarshal(&st); err != nil {
			util.LogWarning("invalid %s: %v", env.Type, err)
			return
		}
		switch env.Type {
		case protocol.TypeConnectionStatus:
			c.onConnectionStatus(st.ClientCount)
		case protocol.TypePeerJoined:
			c.onPeerJoined(st.ClientCount)
		default:
			c.onPeerLeft(st.ClientCount)
		}

	case protocol.TypeOffer:
		var m protocol.Offer
		if err := env.Unmarshal(&m); err != nil {
			util.LogWarning("invalid offer: %v", err)
			return
		}
		c.handleOffer(&m)

	case protocol.TypeAnswer:
		var m protocol.Answer
		if err := env.Unmarshal(&m); err != nil {
			util.LogWarning("invalid answer: %v", err)
			return
		}
		c.handleAnswer(m.Answer)

	case protocol.TypeICECandidate:
		var m protocol.Candidate
		if err := env.Unmarshal(&m); err != nil {
			util.LogWarning("invalid ice-candidate: %v", err)
			return
		}
		c.handleRemoteCandidate(m.Candidate)

	default:
		c.dispatch(env)
	}
}

// send encodes v and writes it to the relay. Failures are logged and not
// retried.
func (c *Controller) send(v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		util.LogError("encode envelope: %v", err)
		return
	}
	if err := c.sig.Send(data); err != nil {
		util.LogWarning("send to relay failed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Relay lifecycle
// ---------------------------------------------------------------------------

// onConnectionStatus pairs only on a count of exactly two. A larger count
// means the room was already full and this socket is an observer.
func (c *Controller) onConnectionStatus(count int) {
	util.LogInfo("clients on relay: %d", count)
	switch {
	case count < 2:
		c.setStatus("Waiting for peer...")
		return
	case count > 2:
		c.observer = true
		c.setStatus(statusObserving)
		return
	}

	c.paired = true
	c.preparePeer()
	if c.role == config.RoleCaller {
		c.scheduleOffer(c.cfg.StatusOfferDelay)
	}
}

func (c *Controller) onPeerJoined(count int) {
	if c.observer {
		util.LogInfo("peer joined the room (%d clients)", count)
		return
	}
	util.LogInfo("peer joined (%d clients)", count)
	c.setStatus("Peer joined, connecting...")

	c.paired = true
	c.preparePeer()
	if c.role == config.RoleCaller {
		c.scheduleOffer(c.cfg.JoinOfferDelay)
	} else {
		util.LogDebug("waiting for offer")
	}
}

func (c *Controller) onPeerLeft(count int) {
	if c.observer {
		util.LogInfo("peer left the room (%d clients)", count)
		return
	}
	util.LogInfo("peer left (%d clients)", count)
	c.setStatus("Peer disconnected")

	if c.offerTimer != nil {
		c.offerTimer.Stop()
		c.offerTimer = nil
	}
	c.pendingOffer = nil
	c.closePeer()
	c.paired = false
	c.pairing++

	if c.local != nil {
		c.transition(StateReady)
	}
}

// ---------------------------------------------------------------------------
// Local media
// ---------------------------------------------------------------------------

func (c *Controller) onMedia(local *media.LocalMedia, err error) {
	if err != nil {
		util.LogError("could not access camera/microphone: %v", err)
		c.transition(StateFailed)
		c.setStatus("Could not access camera/microphone. Please check permissions.")
		c.exitErr = err
		c.stopTimers()
		if cerr := c.sig.Close(); cerr != nil {
			util.LogDebug("close signaling: %v", cerr)
		}
		c.exit = true
		return
	}

	c.local = local
	if c.mediaTimer != nil {
		c.mediaTimer.Stop()
		c.mediaTimer = nil
	}
	c.transition(StateReady)
	util.LogSuccess("local media ready (%d tracks)", len(local.Tracks()))

	if c.pendingOffer != nil {
		offer := c.pendingOffer
		c.pendingOffer = nil
		c.answerOffer(offer.Offer)
		return
	}

	if c.paired {
		c.setStatus("Peer joined, connecting...")
		c.preparePeer()
		if c.role == config.RoleCaller {
			c.scheduleOffer(c.cfg.JoinOfferDelay)
		}
	} else if c.observer {
		c.setStatus(statusObserving)
	} else {
		c.setStatus("Waiting for peer...")
	}
}

// ---------------------------------------------------------------------------
// Peer connection
// ---------------------------------------------------------------------------

// preparePeer creates the peer connection early when media is ready, so
// both sides have their tracks attached before the offer arrives.
func (c *Controller) preparePeer() {
	if c.local == nil || c.peer != nil {
		return
	}
	if err := c.ensurePeer(); err != nil {
		util.LogError("create peer connection: %v", err)
	}
}

// ensurePeer creates the peer connection if there is none and attaches the
// local tracks. Callbacks are tagged with the peer generation so that late
// events from a closed peer are ignored.
func (c *Controller) ensurePeer() error {
	if c.peer != nil {
		return nil
	}

	p, err := c.newPeer()
	if err != nil {
		return err
	}

	c.gen++
	gen := c.gen
	p.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		c.post(localCandidate{gen: gen, candidate: candidate})
	})
	p.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.post(iceChange{gen: gen, state: state})
	})
	p.OnTrack(func(track transport.RemoteTrack) {
		c.post(trackAdded{gen: gen, track: track})
	})

	if c.local != nil {
		for _, track := range c.local.Tracks() {
			if err := p.AddTrack(track); err != nil {
				_ = p.Close()
				return err
			}
		}
	}

	c.peer = p
	util.LogDebug("peer connection created")
	return nil
}

// closePeer releases the peer connection along with everything tied to it:
// remote tracks and queued candidates.
func (c *Controller) closePeer() {
	c.remoteTracks = nil
	c.queue.Clear()
	if c.peer == nil {
		return
	}

	if err := c.peer.Close(); err != nil {
		util.LogDebug("close peer connection: %v", err)
	}
	c.peer = nil
	c.gen++
}

// ---------------------------------------------------------------------------
// Offer / answer
// ---------------------------------------------------------------------------

func (c *Controller) scheduleOffer(delay time.Duration) {
	if c.offerTimer != nil {
		c.offerTimer.Stop()
	}
	pairing := c.pairing
	c.offerTimer = time.AfterFunc(delay, func() {
		c.post(offerDue{pairing: pairing})
	})
}

func (c *Controller) createOffer() {
	c.offerTimer = nil
	if c.local == nil {
		util.LogError("no local media available for offer")
		return
	}
	if err := c.ensurePeer(); err != nil {
		util.LogError("create peer connection: %v", err)
		return
	}
	if !c.transition(StateNegotiating) {
		return
	}

	offer, err := c.peer.CreateOffer()
	if err != nil {
		util.LogError("create offer: %v", err)
		return
	}
	if err := c.peer.SetLocalDescription(offer); err != nil {
		util.LogError("set local description (offer): %v", err)
		return
	}

	util.LogInfo("sending offer")
	c.send(protocol.NewOffer(offer))
}

// handleOffer answers right away when local media is ready. Otherwise the
// offer is parked until media arrives, bounded by the media wait.
func (c *Controller) handleOffer(m *protocol.Offer) {
	if c.local != nil {
		c.answerOffer(m.Offer)
		return
	}

	util.LogInfo("waiting for local media before answering")
	c.pendingOffer = m
	if c.mediaTimer == nil {
		c.mediaTimer = time.AfterFunc(c.cfg.MediaWait(), func() {
			c.post(mediaTimeout{})
		})
	}
}

func (c *Controller) answerOffer(offer webrtc.SessionDescription) {
	// A second offer on an established connection comes from a restarted
	// peer; start over with a fresh connection.
	if c.peer != nil && c.peer.HasRemoteDescription() {
		util.LogInfo("new offer for an established connection, rebuilding peer")
		c.closePeer()
	}

	if !c.transition(StateNegotiating) {
		return
	}
	if err := c.ensurePeer(); err != nil {
		util.LogError("create peer connection: %v", err)
		return
	}

	if err := c.peer.SetRemoteDescription(offer); err != nil {
		util.LogError("set remote description (offer): %v", err)
		return
	}
	c.flushCandidates()

	answer, err := c.peer.CreateAnswer()
	if err != nil {
		util.LogError("create answer: %v", err)
		return
	}
	if err := c.peer.SetLocalDescription(answer); err != nil {
		util.LogError("set local description (answer): %v", err)
		return
	}

	util.LogInfo("sending answer")
	c.send(protocol.NewAnswer(answer))
}

func (c *Controller) handleAnswer(answer webrtc.SessionDescription) {
	if c.peer == nil {
		util.LogWarning("received answer without a peer connection")
		return
	}
	if err := c.peer.SetRemoteDescription(answer); err != nil {
		util.LogError("set remote description (answer): %v", err)
		return
	}
	c.flushCandidates()
	util.LogDebug("answer applied")
}

// ---------------------------------------------------------------------------
// ICE
// ---------------------------------------------------------------------------

func (c *Controller) handleRemoteCandidate(candidate webrtc.ICECandidateInit) {
	if c.peer == nil || !c.peer.HasRemoteDescription() {
		c.queue.Push(candidate)
		util.LogDebug("queued ICE candidate (%d pending)", c.queue.Len())
		return
	}
	if err := c.peer.AddICECandidate(candidate); err != nil {
		util.LogWarning("add ICE candidate: %v", err)
	}
}

// flushCandidates applies queued candidates in arrival order. It must only
// run right after the remote description is set.
func (c *Controller) flushCandidates() {
	pending := c.queue.Drain()
	if len(pending) == 0 {
		return
	}

	util.LogDebug("applying %d queued ICE candidates", len(pending))
	for _, candidate := range pending {
		if err := c.peer.AddICECandidate(candidate); err != nil {
			util.LogWarning("add queued ICE candidate: %v", err)
		}
	}
}

func (c *Controller) onICEState(state webrtc.ICEConnectionState) {
	util.LogDebug("ICE connection state: %s", state)

	switch state {
	case webrtc.ICEConnectionStateChecking:
		c.setStatus("Connecting...")

	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		if c.transition(StateConnected) {
			c.setStatus("Connected")
		}

	case webrtc.ICEConnectionStateDisconnected:
		if c.transition(StateInterrupted) {
			c.setStatus("Connection interrupted...")
		}

	case webrtc.ICEConnectionStateFailed:
		if !c.transition(StateFailed) {
			return
		}
		if !c.cfg.Renegotiate {
			c.setStatus("Connection failed. Restart the call to retry.")
			return
		}

		c.setStatus("Connection failed, renegotiating...")
		c.closePeer()
		if c.role == config.RoleCaller && c.paired {
			c.scheduleOffer(c.cfg.JoinOfferDelay)
		}
	}
}
