package transport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/media"
)

// newTestTransport creates a Transport without STUN servers so no network
// traffic leaves the host, and attaches one audio and one video track.
func newTestTransport(t *testing.T) (*Transport, *media.LocalMedia) {
	t.Helper()

	tr, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	src := media.NewSource(config.MediaConfig{Devices: []string{"front", "back"}}, "test")
	m, err := src.Acquire(context.Background(), "")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	for _, track := range m.Tracks() {
		if err := tr.AddTrack(track); err != nil {
			t.Fatalf("AddTrack failed: %v", err)
		}
	}
	return tr, m
}

// TestOfferContainsMedia verifies that an offer created after attaching the
// local tracks advertises both audio and video.
func TestOfferContainsMedia(t *testing.T) {
	tr, _ := newTestTransport(t)

	offer, err := tr.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		t.Errorf("type = %s", offer.Type)
	}
	for _, want := range []string{"m=audio", "m=video"} {
		if !strings.Contains(offer.SDP, want) {
			t.Errorf("offer SDP missing %q", want)
		}
	}

	if tr.HasRemoteDescription() {
		t.Error("no remote description should be set yet")
	}
	if err := tr.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription failed: %v", err)
	}
}

// TestOfferAnswerBetweenTransports exchanges descriptions between two
// transports in-process and checks that both sides see a remote description.
func TestOfferAnswerBetweenTransports(t *testing.T) {
	caller, _ := newTestTransport(t)
	receiver, _ := newTestTransport(t)

	offer, err := caller.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if err := caller.SetLocalDescription(offer); err != nil {
		t.Fatalf("caller SetLocalDescription failed: %v", err)
	}
	if err := receiver.SetRemoteDescription(offer); err != nil {
		t.Fatalf("receiver SetRemoteDescription failed: %v", err)
	}

	answer, err := receiver.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer failed: %v", err)
	}
	if err := receiver.SetLocalDescription(answer); err != nil {
		t.Fatalf("receiver SetLocalDescription failed: %v", err)
	}
	if err := caller.SetRemoteDescription(answer); err != nil {
		t.Fatalf("caller SetRemoteDescription failed: %v", err)
	}

	if !caller.HasRemoteDescription() || !receiver.HasRemoteDescription() {
		t.Fatal("both sides should have a remote description")
	}
}

// TestReplaceTrack verifies that the video sender accepts a new camera track
// and that replacing a kind with no sender fails.
func TestReplaceTrack(t *testing.T) {
	tr, _ := newTestTransport(t)

	src := media.NewSource(config.MediaConfig{Devices: []string{"front", "back"}}, "test")
	next, err := src.AcquireVideo(context.Background(), "back")
	if err != nil {
		t.Fatalf("AcquireVideo failed: %v", err)
	}
	if err := tr.ReplaceTrack(webrtc.RTPCodecTypeVideo, next); err != nil {
		t.Fatalf("ReplaceTrack failed: %v", err)
	}

	bare, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer bare.Close()

	err = bare.ReplaceTrack(webrtc.RTPCodecTypeVideo, next)
	if !errors.Is(err, ErrNoSender) {
		t.Fatalf("expected ErrNoSender, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	tr, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if tr.ConnectionState() == webrtc.PeerConnectionStateConnected {
		t.Error("closed transport reports connected")
	}
}
