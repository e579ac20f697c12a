package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/util"
)

// Client talks to a station's signaling endpoint.
//
// The default HTTP client has no timeout: a station that never answers
// blocks SendOffer until ctx is done.
type Client struct {
	req requester
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.req.client = hc }
}

// NewClient creates a Client for the endpoint at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{req: requester{base: base, client: &http.Client{}}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized endpoint address.
func (c *Client) BaseURL() string { return c.req.base.String() }

// SendOffer posts the local offer to <base>/offer and returns the validated
// answer. Only the offer's type and sdp fields are transmitted.
//
// Errors: *TransportError for non-2xx responses, ErrProtocolViolation for an
// answer that is undecodable or lacks type "answer" or a non-empty sdp, and
// the raw error for network failures.
func (c *Client) SendOffer(ctx context.Context, offer webrtc.SessionDescription) (*Answer, error) {
	answer, err := c.exchangeOffer(ctx, offer)
	if err != nil {
		util.LogError("signaling error: %v", err)
		return nil, err
	}
	if answer.PeerID == "" {
		util.LogWarning("station did not return peer_id, trickled candidates will not be delivered")
	}
	return answer, nil
}

func (c *Client) exchangeOffer(ctx context.Context, offer webrtc.SessionDescription) (answer *Answer, err error) {
	defer err2.Handle(&err)

	util.LogInfo("sending SDP offer to %s", c.req.endpoint("offer"))
	req := try.To1(c.req.newReq(ctx, "offer", OfferRequest{
		Type: webrtc.SDPTypeOffer.String(),
		SDP:  offer.SDP,
	}))
	res := try.To1(c.req.doReq(req))
	defer res.Body.Close()

	var body AnswerResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode answer: %v", ErrProtocolViolation, err)
	}
	util.LogInfo("received SDP answer from station")

	if body.Type != webrtc.SDPTypeAnswer.String() || body.SDP == "" {
		return nil, fmt.Errorf("%w: invalid SDP answer (type %q, %d bytes of sdp)",
			ErrProtocolViolation, body.Type, len(body.SDP))
	}
	return &Answer{
		Description: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: body.SDP},
		PeerID:      body.PeerID,
	}, nil
}

// SendCandidate posts one local candidate to <base>/candidate. It never
// returns an error: failures are logged and reported in the result. With an
// empty peerID it performs no I/O.
func (c *Client) SendCandidate(ctx context.Context, peerID string, cand webrtc.ICECandidateInit) TrickleResult {
	if peerID == "" {
		util.LogWarning("cannot send candidate: no peer_id")
		return TrickleResult{Status: TrickleSkipped}
	}

	util.LogDebug("sending ICE candidate to %s", c.req.endpoint("candidate"))
	if err := c.postCandidate(ctx, CandidateRequest{
		PeerID:        peerID,
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	}); err != nil {
		util.LogError("candidate signaling error: %v", err)
		return TrickleResult{Status: TrickleFailed, Err: fmt.Errorf("%w: %v", ErrTrickleDelivery, err)}
	}
	return TrickleResult{Status: TrickleSent}
}

func (c *Client) postCandidate(ctx context.Context, body CandidateRequest) (err error) {
	defer err2.Handle(&err)

	req := try.To1(c.req.newReq(ctx, "candidate", body))
	res := try.To1(c.req.doReq(req))
	defer res.Body.Close()
	_, err = io.Copy(io.Discard, res.Body)
	return err
}
