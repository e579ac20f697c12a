// Package transport models the underlying WebRTC connection as a typed
// capability interface and provides the pion-backed implementation, the
// bounded ICE gathering wait, and SDP candidate inspection.
package transport

import (
	"github.com/pion/webrtc/v4"
)

// Gatherer is the candidate-discovery part of a connection.
type Gatherer interface {
	ICEGatheringState() webrtc.ICEGatheringState
	OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState))
}

// DataChannel is the read side of an inbound auxiliary channel.
type DataChannel interface {
	Label() string
	OnMessage(fn func(msg webrtc.DataChannelMessage))
}

// PeerConnection is everything the orchestrator needs from a WebRTC
// connection. Each event class has its own typed registration method.
type PeerConnection interface {
	Gatherer

	AddTransceiver(kind webrtc.RTPCodecType, dir webrtc.RTPTransceiverDirection) error
	CreateOffer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	SetRemoteDescription(desc webrtc.SessionDescription) error

	// CreateDataChannel opens an outbound channel. Its only role on the
	// viewer side is to put an application section in the offer so the
	// station can open its own channels.
	CreateDataChannel(label string) (DataChannel, error)

	// OnICECandidate is invoked for each gathered local candidate. A nil
	// candidate signals the end of gathering.
	OnICECandidate(fn func(*webrtc.ICECandidateInit))
	OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnTrack(fn func(MediaStream))
	OnDataChannel(fn func(DataChannel))

	Close() error
}

// Factory creates a fresh PeerConnection. Each orchestrator calls it once.
type Factory func() (PeerConnection, error)

// MediaStream is a read-only handle to a remote stream. The connection owns
// the underlying track; holders must not retain it past forwarding.
type MediaStream struct {
	ID   string // msid stream id; empty when the track carries no stream
	Kind string // "video" or "audio"

	track *webrtc.TrackRemote
}

// Track returns the pion track backing the stream, or nil for handles that
// were not produced by a pion connection.
func (m MediaStream) Track() *webrtc.TrackRemote { return m.track }
