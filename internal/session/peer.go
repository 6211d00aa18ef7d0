package session

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duocall/internal/media"
	"github.com/1ureka/duocall/internal/transport"
)

// Peer is the peer-connection surface the controller drives.
// *transport.Transport implements it.
type Peer interface {
	AddTrack(track webrtc.TrackLocal) error
	ReplaceTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error

	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(sdp webrtc.SessionDescription) error
	SetRemoteDescription(sdp webrtc.SessionDescription) error
	HasRemoteDescription() bool
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState))
	OnTrack(fn func(transport.RemoteTrack))

	Close() error
}

// PeerFactory creates a fresh Peer for each pairing.
type PeerFactory func() (Peer, error)

// TransportFactory returns a PeerFactory backed by pion.
func TransportFactory(stunServers []string) PeerFactory {
	return func() (Peer, error) {
		t, err := transport.New(stunServers)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// Signaler carries envelopes to and from the relay.
// *signaling.Client implements it.
type Signaler interface {
	Send(data []byte) error
	Inbound() <-chan []byte
	Close() error
}

// MediaSource provides local capture tracks. *media.Source implements it.
type MediaSource interface {
	Devices(ctx context.Context) ([]media.Device, error)
	Acquire(ctx context.Context, deviceID string) (*media.LocalMedia, error)
	AcquireVideo(ctx context.Context, deviceID string) (*media.LocalTrack, error)
}
