// Package station is the signaling endpoint a viewer connects to: it answers
// offers, accepts trickled candidates, and publishes auxiliary frames to every
// connected viewer over data channels and to SSE subscribers.
package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/donovanhide/eventsource"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/clock"
	"github.com/1ureka/roverlink/internal/protocol"
	"github.com/1ureka/roverlink/internal/signaling"
	"github.com/1ureka/roverlink/internal/transport"
	"github.com/1ureka/roverlink/internal/util"
)

// ChannelLabel is the label of the data channel the station opens per peer.
const ChannelLabel = "telemetry"

// eventChannel is the SSE channel name served on /events.
const eventChannel = "frames"

const maxBodySize = 64 * 1024

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("station closed")

// Options configures a Station.
type Options struct {
	// ICEServers for station peers. Empty means host candidates only.
	ICEServers []string

	// GatherTimeout bounds the wait before the answer is returned.
	GatherTimeout time.Duration

	// VideoFile is an IVF file (VP8, VP9 or AV1) looped to every viewer.
	// Empty sends synthetic VP8 frames.
	VideoFile string

	// API builds peer connections. Defaults to transport.NewAPI().
	API   *webrtc.API
	Clock clock.Clock
}

type peer struct {
	id     string
	pc     *webrtc.PeerConnection
	sender *sender
	cancel context.CancelFunc
}

// Station is an http.Handler serving /offer, /candidate, /status and /events.
type Station struct {
	opts   Options
	mux    *http.ServeMux
	events *eventsource.Server
	seq    atomic.Uint64

	mu     sync.Mutex
	peers  map[string]*peer
	closed bool

	listener net.Listener
	srv      *http.Server
}

// New creates a Station with no peers.
func New(opts Options) *Station {
	if opts.GatherTimeout <= 0 {
		opts.GatherTimeout = transport.DefaultGatherTimeout
	}
	if opts.API == nil {
		opts.API = transport.NewAPI()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	s := &Station{
		opts:   opts,
		mux:    http.NewServeMux(),
		events: eventsource.NewServer(),
		peers:  make(map[string]*peer),
	}

	s.mux.HandleFunc("POST /offer", s.handleOffer)
	s.mux.HandleFunc("POST /candidate", s.handleCandidate)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.Handle("GET /events", s.events.Handler(eventChannel))
	return s
}

func (s *Station) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background. It returns the bound
// address.
func (s *Station) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.listener = listener
	s.srv = &http.Server{Handler: s}

	go func() {
		_ = s.srv.Serve(listener)
	}()

	util.LogInfo("station listening on %s", listener.Addr())
	return listener.Addr().String(), nil
}

func (s *Station) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req signaling.OfferRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid offer body", http.StatusBadRequest)
		return
	}
	if req.Type != webrtc.SDPTypeOffer.String() || req.SDP == "" {
		http.Error(w, "expected an sdp offer", http.StatusBadRequest)
		return
	}

	p, answer, err := s.answer(r.Context(), req.SDP)
	if err != nil {
		util.LogWarning("offer rejected: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		p.close()
		http.Error(w, "station closed", http.StatusServiceUnavailable)
		return
	}
	s.peers[p.id] = p
	n := len(s.peers)
	s.mu.Unlock()

	util.LogSuccess("peer %s connected (%d active)", p.id, n)
	writeJSON(w, signaling.AnswerResponse{
		Type:   webrtc.SDPTypeAnswer.String(),
		SDP:    answer,
		PeerID: p.id,
	})
}

// answer creates a peer for the offer and returns its answer once gathering
// completes or the gather timeout expires.
func (s *Station) answer(ctx context.Context, offer string) (*peer, string, error) {
	var servers []webrtc.ICEServer
	if len(s.opts.ICEServers) > 0 {
		servers = []webrtc.ICEServer{{URLs: s.opts.ICEServers}}
	}
	pc, err := s.opts.API.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, "", err
	}

	dc, err := pc.CreateDataChannel(ChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, "", err
	}

	peerCtx, cancel := context.WithCancel(context.Background())
	p := &peer{
		id:     uuid.NewString(),
		pc:     pc,
		sender: newSender(peerCtx, dc),
		cancel: cancel,
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		util.LogInfo("peer %s ICE state: %s", p.id, state)
		if state == webrtc.ICEConnectionStateFailed || state == webrtc.ICEConnectionStateClosed {
			s.remove(p.id)
		}
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		util.LogDebug("peer %s opened data channel %q", p.id, dc.Label())
	})

	if err := s.addCamera(peerCtx, pc, p.id); err != nil {
		p.close()
		return nil, "", fmt.Errorf("add camera track: %w", err)
	}

	sdp, err := negotiate(ctx, pc, offer, s.opts.Clock, s.opts.GatherTimeout)
	if err != nil {
		p.close()
		return nil, "", err
	}
	return p, sdp, nil
}

func negotiate(ctx context.Context, pc *webrtc.PeerConnection, offer string, clk clock.Clock, timeout time.Duration) (string, error) {
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return "", err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", err
	}

	transport.WaitForGathering(ctx, pc, clk, timeout)
	local := pc.LocalDescription()
	if local == nil {
		return "", errors.New("no local description after gathering")
	}
	return local.SDP, nil
}

func (s *Station) handleCandidate(w http.ResponseWriter, r *http.Request) {
	var req signaling.CandidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid candidate body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	p, ok := s.peers[req.PeerID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown peer", http.StatusNotFound)
		return
	}

	err := p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     req.Candidate,
		SDPMid:        req.SDPMid,
		SDPMLineIndex: req.SDPMLineIndex,
	})
	if err != nil {
		util.LogWarning("peer %s: bad candidate: %v", req.PeerID, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	util.LogDebug("peer %s: added candidate %s", req.PeerID, req.Candidate)
	w.Write([]byte("OK"))
}

func (s *Station) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "peers": s.Peers()})
}

// Peers returns the number of registered peers.
func (s *Station) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// OpenChannels returns the number of peers whose data channel is open.
func (s *Station) OpenChannels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.peers {
		if p.sender.isOpen() {
			n++
		}
	}
	return n
}

// Publish encodes msg and sends it to every open peer channel and to SSE
// subscribers. It returns the number of peers the frame was queued for.
func (s *Station) Publish(msg *protocol.Message) (int, error) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	sent := 0
	for id, p := range s.peers {
		if p.sender.send(data) {
			sent++
		} else {
			util.LogDebug("peer %s: frame dropped (channel not open or full)", id)
		}
	}
	// s.mu is held: events.Publish must not run after events.Close.
	s.events.Publish([]string{eventChannel}, &frameEvent{
		id:   strconv.FormatUint(s.seq.Add(1), 10),
		typ:  msg.Type,
		data: string(data),
	})
	s.mu.Unlock()
	return sent, nil
}

func (s *Station) remove(id string) {
	s.mu.Lock()
	p, ok := s.peers[id]
	delete(s.peers, id)
	s.mu.Unlock()

	if ok {
		util.LogInfo("peer %s removed", id)
		go p.close()
	}
}

func (p *peer) close() {
	p.cancel()
	p.pc.Close()
}

// Close closes every peer, SSE stream and the listener if Start was used.
func (s *Station) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	peers := s.peers
	s.peers = make(map[string]*peer)
	s.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
	s.events.Close()

	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.LogWarning("failed to write response: %v", err)
	}
}

// frameEvent is one published frame on the SSE stream.
type frameEvent struct {
	id, typ, data string
}

func (e *frameEvent) Id() string    { return e.id }
func (e *frameEvent) Event() string { return e.typ }
func (e *frameEvent) Data() string  { return e.data }
