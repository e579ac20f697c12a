package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/util"
)

// DefaultICEServers are the public STUN servers used when none are configured.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
}

// Peer adapts a *webrtc.PeerConnection to PeerConnection.
type Peer struct {
	pc *webrtc.PeerConnection
}

var _ PeerConnection = (*Peer)(nil)

// NewPeer creates a pion PeerConnection using the given STUN/TURN URLs.
// An empty list falls back to DefaultICEServers.
func NewPeer(iceServers []string) (*Peer, error) {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: iceServers},
		},
	}
	pc, err := NewAPI().NewPeerConnection(config)
	if err != nil {
		return nil, err
	}
	return Wrap(pc), nil
}

// NewAPI returns a pion API whose internal logging goes through util.
func NewAPI() *webrtc.API {
	se := webrtc.SettingEngine{LoggerFactory: util.PionLoggerFactory{}}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

// Wrap adapts an existing pion connection, e.g. one built from a custom
// webrtc.API.
func Wrap(pc *webrtc.PeerConnection) *Peer {
	return &Peer{pc: pc}
}

// PionFactory returns a Factory producing Peers with the given ICE servers.
func PionFactory(iceServers []string) Factory {
	return func() (PeerConnection, error) {
		return NewPeer(iceServers)
	}
}

// AddTransceiver declares a media line of the given kind and direction.
// pion refuses inactive here, so an inactive line is added as recvonly
// and stopped, which renders it as a=inactive in the offer.
func (p *Peer) AddTransceiver(kind webrtc.RTPCodecType, dir webrtc.RTPTransceiverDirection) error {
	if dir != webrtc.RTPTransceiverDirectionInactive {
		_, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: dir})
		return err
	}
	tr, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return err
	}
	return tr.Stop()
}

// CreateOffer generates an SDP offer with default options.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// SetLocalDescription applies the local SDP and starts candidate gathering.
func (p *Peer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

// LocalDescription returns the current local SDP including gathered candidates.
func (p *Peer) LocalDescription() *webrtc.SessionDescription {
	return p.pc.LocalDescription()
}

// SetRemoteDescription applies the remote SDP.
func (p *Peer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

// CreateDataChannel opens an ordered, reliable channel.
func (p *Peer) CreateDataChannel(label string) (DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (p *Peer) ICEGatheringState() webrtc.ICEGatheringState {
	return p.pc.ICEGatheringState()
}

func (p *Peer) OnICEGatheringStateChange(fn func(webrtc.ICEGatheringState)) {
	p.pc.OnICEGatheringStateChange(fn)
}

// OnICECandidate converts pion candidates to their signaling form.
func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}
		init := c.ToJSON()
		fn(&init)
	})
}

func (p *Peer) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	p.pc.OnICEConnectionStateChange(fn)
}

func (p *Peer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

// OnTrack wraps each remote track in a MediaStream handle.
func (p *Peer) OnTrack(fn func(MediaStream)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(MediaStream{
			ID:    track.StreamID(),
			Kind:  track.Kind().String(),
			track: track,
		})
	})
}

func (p *Peer) OnDataChannel(fn func(DataChannel)) {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		fn(dc)
	})
}

// Close shuts down the PeerConnection.
func (p *Peer) Close() error {
	return p.pc.Close()
}

// Raw exposes the underlying pion connection.
func (p *Peer) Raw() *webrtc.PeerConnection { return p.pc }
