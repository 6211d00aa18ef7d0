// Package protocol defines the signaling envelopes exchanged over the relay socket.
package protocol

import (
	"github.com/pion/webrtc/v4"
)

// Type is the discriminator carried in every envelope's "type" field.
type Type string

// Lifecycle types are produced by the relay itself.
const (
	TypeConnectionStatus Type = "connection-status"
	TypePeerJoined       Type = "peer-joined"
	TypePeerLeft         Type = "peer-left"
)

// Negotiation types are produced by one client and relayed to the other.
const (
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
)

// IsLifecycle reports whether t is a relay-generated notification.
func (t Type) IsLifecycle() bool {
	switch t {
	case TypeConnectionStatus, TypePeerJoined, TypePeerLeft:
		return true
	}
	return false
}

// Envelope is a decoded frame. Raw holds the exact bytes that arrived so the
// frame can be forwarded unmodified.
type Envelope struct {
	Type Type
	Raw  []byte
}

// Status is the payload of connection-status, peer-joined and peer-left.
type Status struct {
	Type        Type `json:"type"`
	ClientCount int  `json:"clientCount"`
}

// Offer carries the caller's session description.
type Offer struct {
	Type  Type                      `json:"type"`
	Offer webrtc.SessionDescription `json:"offer"`
}

// Answer carries the receiver's session description.
type Answer struct {
	Type   Type                      `json:"type"`
	Answer webrtc.SessionDescription `json:"answer"`
}

// Candidate carries one trickled ICE candidate.
type Candidate struct {
	Type      Type                    `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func NewStatus(t Type, clientCount int) Status {
	return Status{Type: t, ClientCount: clientCount}
}

func NewOffer(sd webrtc.SessionDescription) Offer {
	return Offer{Type: TypeOffer, Offer: sd}
}

func NewAnswer(sd webrtc.SessionDescription) Answer {
	return Answer{Type: TypeAnswer, Answer: sd}
}

func NewCandidate(c webrtc.ICECandidateInit) Candidate {
	return Candidate{Type: TypeICECandidate, Candidate: c}
}
