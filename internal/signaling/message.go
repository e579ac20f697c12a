// Package signaling implements the HTTP signaling exchange with the remote
// station: a one-shot offer/answer POST and best-effort candidate trickling.
package signaling

import "github.com/pion/webrtc/v4"

// OfferRequest is the body of POST <base>/offer. Only type and sdp are sent.
type OfferRequest struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// AnswerResponse is the body returned by POST <base>/offer.
type AnswerResponse struct {
	Type   string `json:"type"`
	SDP    string `json:"sdp"`
	PeerID string `json:"peer_id"`
}

// CandidateRequest is the body of POST <base>/candidate. Absent sdpMid and
// sdpMLineIndex are sent as JSON null.
type CandidateRequest struct {
	PeerID        string  `json:"peer_id"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// Answer is a validated offer response.
type Answer struct {
	Description webrtc.SessionDescription

	// PeerID is empty when the station did not assign one; trickling is
	// then inoperative for the session.
	PeerID string
}
