package signaling

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/util"
)

// CandidateSender delivers one candidate for a peer.
type CandidateSender interface {
	SendCandidate(ctx context.Context, peerID string, cand webrtc.ICECandidateInit) TrickleResult
}

var _ CandidateSender = (*Client)(nil)

// Trickler forwards late candidates for one assigned peer. It does not retry:
// each candidate is attempted exactly once.
type Trickler struct {
	sender CandidateSender
	peerID string
}

// NewTrickler binds sender to peerID.
func NewTrickler(sender CandidateSender, peerID string) *Trickler {
	return &Trickler{sender: sender, peerID: peerID}
}

// PeerID returns the peer the trickler delivers to.
func (t *Trickler) PeerID() string { return t.peerID }

// Send delivers cand and records the outcome in util.Stats.
func (t *Trickler) Send(ctx context.Context, cand webrtc.ICECandidateInit) TrickleResult {
	res := t.sender.SendCandidate(ctx, t.peerID, cand)
	switch res.Status {
	case TrickleSent:
		util.Stats.AddTrickled()
	case TrickleSkipped:
		util.Stats.AddTrickleSkip()
	case TrickleFailed:
		util.Stats.AddTrickleFail()
	}
	return res
}
