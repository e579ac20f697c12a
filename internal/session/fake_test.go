package session

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/transport"
)

type transceiverCall struct {
	kind       webrtc.RTPCodecType
	dir        webrtc.RTPTransceiverDirection
	afterOffer bool
}

// fakeConn is a scriptable transport.PeerConnection.
type fakeConn struct {
	mu sync.Mutex

	// script
	completeOnLocal bool   // gathering is complete as soon as the offer is set
	finalSDP        string // local description once gathering ran
	noLocal         bool
	offerErr        error
	remoteErr       error
	connectOnRemote bool

	// recorded
	transceivers []transceiverCall
	channels     []string
	offered      bool
	remote       *webrtc.SessionDescription
	closed       bool

	gathering   webrtc.ICEGatheringState
	local       *webrtc.SessionDescription
	onGather    func(webrtc.ICEGatheringState)
	onCandidate func(*webrtc.ICECandidateInit)
	onICEState  func(webrtc.ICEConnectionState)
	onConnState func(webrtc.PeerConnectionState)
	onTrack     func(transport.MediaStream)
	onDataChan  func(transport.DataChannel)
}

var _ transport.PeerConnection = (*fakeConn)(nil)

func (f *fakeConn) factory() transport.Factory {
	return func() (transport.PeerConnection, error) { return f, nil }
}

func (f *fakeConn) ICEGatheringState() webrtc.ICEGatheringState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gathering == webrtc.ICEGatheringStateUnknown {
		return webrtc.ICEGatheringStateNew
	}
	return f.gathering
}

func (f *fakeConn) OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onGather = fn
}

func (f *fakeConn) AddTransceiver(kind webrtc.RTPCodecType, dir webrtc.RTPTransceiverDirection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transceivers = append(f.transceivers, transceiverCall{kind: kind, dir: dir, afterOffer: f.offered})
	return nil
}

func (f *fakeConn) CreateDataChannel(label string) (transport.DataChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, label)
	return &fakeChannel{label: label}, nil
}

func (f *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return webrtc.SessionDescription{}, f.offerErr
	}
	f.offered = true
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\nmock-offer\r\n"}, nil
}

func (f *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.noLocal {
		d := desc
		if f.finalSDP != "" {
			d.SDP = f.finalSDP
		}
		f.local = &d
	}
	f.gathering = webrtc.ICEGatheringStateGathering
	if f.completeOnLocal {
		f.gathering = webrtc.ICEGatheringStateComplete
	}
	return nil
}

func (f *fakeConn) LocalDescription() *webrtc.SessionDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local
}

func (f *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	if f.remoteErr != nil {
		f.mu.Unlock()
		return f.remoteErr
	}
	f.remote = &desc
	connect := f.connectOnRemote
	fn := f.onICEState
	f.mu.Unlock()

	if connect && fn != nil {
		fn(webrtc.ICEConnectionStateChecking)
		fn(webrtc.ICEConnectionStateConnected)
	}
	return nil
}

func (f *fakeConn) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCandidate = fn
}

func (f *fakeConn) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onICEState = fn
}

func (f *fakeConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnState = fn
}

func (f *fakeConn) OnTrack(fn func(transport.MediaStream)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = fn
}

func (f *fakeConn) OnDataChannel(fn func(transport.DataChannel)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDataChan = fn
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// emitCandidate simulates a locally gathered candidate.
func (f *fakeConn) emitCandidate(line string) {
	f.mu.Lock()
	fn := f.onCandidate
	f.mu.Unlock()
	if fn == nil {
		return
	}
	mid := "0"
	var idx uint16
	fn(&webrtc.ICECandidateInit{Candidate: line, SDPMid: &mid, SDPMLineIndex: &idx})
}

// completeGathering flips the state and notifies the observer.
func (f *fakeConn) completeGathering() {
	f.mu.Lock()
	f.gathering = webrtc.ICEGatheringStateComplete
	fn := f.onGather
	f.mu.Unlock()
	if fn != nil {
		fn(webrtc.ICEGatheringStateComplete)
	}
}

func (f *fakeConn) setICEState(s webrtc.ICEConnectionState) {
	f.mu.Lock()
	fn := f.onICEState
	f.mu.Unlock()
	fn(s)
}

func (f *fakeConn) remoteSDP() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return ""
	}
	return f.remote.SDP
}

// fakeChannel is an inbound data channel the test pushes frames through.
type fakeChannel struct {
	label   string
	handler func(webrtc.DataChannelMessage)
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) OnMessage(fn func(webrtc.DataChannelMessage)) {
	c.handler = fn
}

func (c *fakeChannel) deliver(data string) {
	c.handler(webrtc.DataChannelMessage{Data: []byte(data)})
}

var errBoom = errors.New("boom")
