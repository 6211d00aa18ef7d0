package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/protocol"
	"github.com/1ureka/duocall/internal/transport"
)

// ---------------------------------------------------------------------------
// Simulated peer connection
// ---------------------------------------------------------------------------

type fakeTrack struct {
	id   string
	kind webrtc.RTPCodecType
}

func (t fakeTrack) ID() string                { return t.id }
func (t fakeTrack) StreamID() string          { return "remote" }
func (t fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }

// fakePeer is a peer connection whose connectivity always succeeds: once
// both descriptions are set it reports checking, then connected, then two
// remote tracks. Setting the local description trickles one candidate.
type fakePeer struct {
	id string

	mu       sync.Mutex
	local    *webrtc.SessionDescription
	remote   *webrtc.SessionDescription
	calls    []string // "remote" and "cand:<candidate>" in call order
	applied  []string
	added    []webrtc.TrackLocal
	replaced []webrtc.TrackLocal
	closed   bool
	started  bool
	reject   map[string]bool // candidates whose next apply fails

	onCandidate func(webrtc.ICECandidateInit)
	onState     func(webrtc.ICEConnectionState)
	onTrack     func(transport.RemoteTrack)
}

func (p *fakePeer) AddTrack(track webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, track)
	return nil
}

func (p *fakePeer) ReplaceTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if kind != webrtc.RTPCodecTypeVideo {
		return errors.New("only video is replaced in tests")
	}
	p.replaced = append(p.replaced, track)
	return nil
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer from " + p.id}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil || p.remote.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer from " + p.id}, nil
}

func (p *fakePeer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	p.mu.Lock()
	p.local = &sdp
	onCandidate := p.onCandidate
	p.mu.Unlock()

	if onCandidate != nil {
		go onCandidate(webrtc.ICECandidateInit{Candidate: "candidate:" + p.id})
	}
	p.maybeConnect()
	return nil
}

func (p *fakePeer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	p.mu.Lock()
	p.remote = &sdp
	p.calls = append(p.calls, "remote")
	p.mu.Unlock()

	p.maybeConnect()
	return nil
}

func (p *fakePeer) HasRemoteDescription() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote != nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	if p.reject[c.Candidate] {
		delete(p.reject, c.Candidate)
		return fmt.Errorf("malformed candidate %q", c.Candidate)
	}
	p.calls = append(p.calls, "cand:"+c.Candidate)
	p.applied = append(p.applied, c.Candidate)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = fn
}

func (p *fakePeer) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *fakePeer) OnTrack(fn func(transport.RemoteTrack)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = fn
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) maybeConnect() {
	p.mu.Lock()
	ready := p.local != nil && p.remote != nil && !p.started && !p.closed
	if ready {
		p.started = true
	}
	onState, onTrack := p.onState, p.onTrack
	p.mu.Unlock()

	if !ready {
		return
	}
	go func() {
		onState(webrtc.ICEConnectionStateChecking)
		onState(webrtc.ICEConnectionStateConnected)
		onTrack(fakeTrack{id: p.id + "-audio", kind: webrtc.RTPCodecTypeAudio})
		onTrack(fakeTrack{id: p.id + "-video", kind: webrtc.RTPCodecTypeVideo})
	}()
}

// setState reports an ICE state change as pion would.
func (p *fakePeer) setState(state webrtc.ICEConnectionState) {
	p.mu.Lock()
	onState := p.onState
	p.mu.Unlock()
	onState(state)
}

func (p *fakePeer) fail() { p.setState(webrtc.ICEConnectionStateFailed) }

// rejectOnce makes the next AddICECandidate call for each candidate fail.
func (p *fakePeer) rejectOnce(candidates ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject == nil {
		p.reject = make(map[string]bool)
	}
	for _, c := range candidates {
		p.reject[c] = true
	}
}

func (p *fakePeer) snapshot() (calls, applied []string, replaced []webrtc.TrackLocal, closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...),
		append([]string(nil), p.applied...),
		append([]webrtc.TrackLocal(nil), p.replaced...),
		p.closed
}

// peerRecorder is a PeerFactory that keeps every peer it creates.
type peerRecorder struct {
	prefix string
	mu     sync.Mutex
	peers  []*fakePeer
}

func (r *peerRecorder) New() (Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &fakePeer{id: fmt.Sprintf("%s%d", r.prefix, len(r.peers)+1)}
	r.peers = append(r.peers, p)
	return p, nil
}

func (r *peerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

func (r *peerRecorder) last() *fakePeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.peers) == 0 {
		return nil
	}
	return r.peers[len(r.peers)-1]
}

// ---------------------------------------------------------------------------
// Scripted relay socket
// ---------------------------------------------------------------------------

type fakeSignaler struct {
	inbound chan []byte

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{inbound: make(chan []byte, 16)}
}

func (s *fakeSignaler) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("socket closed")
	}
	s.sent = append(s.sent, data)
	return nil
}

func (s *fakeSignaler) Inbound() <-chan []byte { return s.inbound }

func (s *fakeSignaler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSignaler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// sentOfType returns every frame of type t sent so far.
func (s *fakeSignaler) sentOfType(t protocol.Type) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]byte
	for _, data := range s.sent {
		if typ, err := protocol.PeekType(data); err == nil && typ == t {
			out = append(out, data)
		}
	}
	return out
}

func (s *fakeSignaler) deliver(t *testing.T, v any) {
	t.Helper()
	data, err := protocol.Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s.inbound <- data
}

// ---------------------------------------------------------------------------
// Media source wrappers
// ---------------------------------------------------------------------------

// gatedSource delays Acquire until gate is closed and records what it hands
// out.
type gatedSource struct {
	*media.Source
	gate chan struct{}

	mu    sync.Mutex
	local *media.LocalMedia
}

func (g *gatedSource) Acquire(ctx context.Context, deviceID string) (*media.LocalMedia, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m, err := g.Source.Acquire(ctx, deviceID)
	g.mu.Lock()
	g.local = m
	g.mu.Unlock()
	return m, err
}

func (g *gatedSource) acquired() *media.LocalMedia {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.local
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

func testSessionConfig() config.SessionConfig {
	cfg := config.Default().Session
	cfg.JoinOfferDelay = 10 * time.Millisecond
	cfg.StatusOfferDelay = 20 * time.Millisecond
	cfg.MediaPollInterval = 10 * time.Millisecond
	cfg.MediaPollAttempts = 100
	cfg.STUNServers = nil
	return cfg
}

type harness struct {
	c     *Controller
	sig   *fakeSignaler
	peers *peerRecorder
	src   *gatedSource
	errCh chan error
}

func startSession(t *testing.T, role config.Role, mediaCfg config.MediaConfig, mutate func(*config.SessionConfig), gate chan struct{}) *harness {
	t.Helper()

	cfg := testSessionConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		sig:   newFakeSignaler(),
		peers: &peerRecorder{prefix: string(role)},
		src:   &gatedSource{Source: media.NewSource(mediaCfg, string(role)), gate: gate},
		errCh: make(chan error, 1),
	}

	c, err := New(Options{
		Role:     role,
		Config:   cfg,
		Signaler: h.sig,
		Media:    h.src,
		NewPeer:  h.peers.New,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.c = c

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.errCh <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return h
}

func defaultMedia() config.MediaConfig {
	return config.MediaConfig{Devices: []string{"front", "back"}}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	eventually(t, "state "+want.String(), func() bool { return c.Snapshot().State == want })
}

func (h *harness) runResult(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errCh:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	return nil
}
