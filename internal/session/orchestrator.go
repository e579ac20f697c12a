// Package session drives WebRTC session establishment with a remote station:
// offer creation, bounded ICE gathering, the HTTP offer/answer exchange, and
// the trickle path for late candidates.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/clock"
	"github.com/1ureka/roverlink/internal/protocol"
	"github.com/1ureka/roverlink/internal/router"
	"github.com/1ureka/roverlink/internal/signaling"
	"github.com/1ureka/roverlink/internal/transport"
	"github.com/1ureka/roverlink/internal/util"
)

// trickleTimeout bounds each individual candidate POST.
const trickleTimeout = 5 * time.Second

// Signaler is the station-facing side of the exchange.
type Signaler interface {
	SendOffer(ctx context.Context, offer webrtc.SessionDescription) (*signaling.Answer, error)
	signaling.CandidateSender
}

var _ Signaler = (*signaling.Client)(nil)

// Observers receive everything the orchestrator publishes. Any field may be
// nil. Callbacks can run on connection-internal goroutines.
type Observers struct {
	Status     func(Phase)
	Stream     func(transport.MediaStream)
	Telemetry  func(protocol.Telemetry)
	Detections func([]protocol.Detection)
}

// Options configures an Orchestrator.
type Options struct {
	// SignalingURL is the station base URL, e.g. http://10.0.0.2:8080.
	// Ignored when Signaler is set.
	SignalingURL string
	Signaler     Signaler

	// Factory creates the underlying connection. Defaults to pion with
	// ICEServers.
	Factory    transport.Factory
	ICEServers []string

	// ControlChannel, when set, is the label of an outbound data channel
	// created before the offer. Without it the offer carries no application
	// section and the station cannot open auxiliary channels.
	ControlChannel string

	// GatherTimeout bounds the ICE gathering wait. Defaults to
	// transport.DefaultGatherTimeout.
	GatherTimeout time.Duration
	Clock         clock.Clock

	Observers Observers
}

// Orchestrator owns one peer connection and negotiates it exactly once.
// Retrying means constructing a new Orchestrator.
type Orchestrator struct {
	signaler      Signaler
	factory       transport.Factory
	control       string
	gatherTimeout time.Duration
	clk           clock.Clock
	observers     Observers
	router        *router.Router

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	run      runState
	closed   bool
	phase    Phase
	trickle  trickleState
	trickler *signaling.Trickler
	peerID   string
	conn     transport.PeerConnection
}

// New validates opts and returns an idle Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	sig := opts.Signaler
	if sig == nil {
		client, err := signaling.NewClient(opts.SignalingURL)
		if err != nil {
			return nil, err
		}
		sig = client
	}
	if opts.Factory == nil {
		opts.Factory = transport.PionFactory(opts.ICEServers)
	}
	if opts.GatherTimeout <= 0 {
		opts.GatherTimeout = transport.DefaultGatherTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		signaler:      sig,
		factory:       opts.Factory,
		control:       opts.ControlChannel,
		gatherTimeout: opts.GatherTimeout,
		clk:           opts.Clock,
		observers:     opts.Observers,
		router: router.New(router.Handlers{
			Telemetry:  opts.Observers.Telemetry,
			Detections: opts.Observers.Detections,
		}),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Connect negotiates the session:
//  1. Create the connection and declare recvonly video + inactive audio
//     (plus the control channel, if configured)
//  2. Register state, track, data channel and candidate sinks
//  3. Create the offer and set it locally (starts ICE gathering)
//  4. Wait for gathering, bounded by the gather timeout
//  5. POST the finalized offer and apply the returned answer
//
// A nil return means the answer was accepted, not that media is flowing:
// PhaseConnected is published later by the ICE state sink. Connect may be
// called once; later calls return ErrAlreadyConnecting or ErrAlreadyConnected,
// and any call after Close returns ErrClosed.
func (o *Orchestrator) Connect(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	switch o.run {
	case runActive:
		o.mu.Unlock()
		return ErrAlreadyConnecting
	case runDone:
		o.mu.Unlock()
		return ErrAlreadyConnected
	}
	o.run = runActive
	o.mu.Unlock()

	err := o.connect(ctx)

	o.mu.Lock()
	o.run = runDone
	o.mu.Unlock()

	if err != nil && !errors.Is(err, ErrClosed) {
		util.LogError("connect failed: %v", err)
		o.setPhase(PhaseFailed)
	}
	return err
}

func (o *Orchestrator) connect(ctx context.Context) error {
	util.LogInfo("starting WebRTC connection...")
	o.setPhase(PhaseNegotiating)

	// 1. Connection + transceivers. Media lines must exist before the offer
	// or it will lack the sections the station needs to answer.
	conn, err := o.factory()
	if err != nil {
		return fail(ErrSDPGeneration, "create peer connection", err)
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	o.conn = conn
	o.mu.Unlock()

	if err := conn.AddTransceiver(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverDirectionRecvonly); err != nil {
		return fail(ErrSDPGeneration, "add video transceiver", err)
	}
	if err := conn.AddTransceiver(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverDirectionInactive); err != nil {
		return fail(ErrSDPGeneration, "add audio transceiver", err)
	}

	if o.control != "" {
		if _, err := conn.CreateDataChannel(o.control); err != nil {
			return fail(ErrSDPGeneration, "create control channel", err)
		}
	}

	// 2. Sinks.
	o.registerSinks(conn)
	conn.OnICECandidate(o.handleCandidate)

	// 3. Offer. Setting it locally starts candidate discovery.
	offer, err := conn.CreateOffer()
	if err != nil {
		return fail(ErrSDPGeneration, "create offer", err)
	}
	if err := conn.SetLocalDescription(offer); err != nil {
		return fail(ErrSDPGeneration, "set local description", err)
	}
	util.LogDebug("local description set, ICE gathering started")

	// 4. Bounded gathering wait.
	o.setPhase(PhaseIceGathering)
	util.LogInfo("waiting up to %s for ICE gathering...", o.gatherTimeout)
	transport.WaitForGathering(ctx, conn, o.clk, o.gatherTimeout)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	local := conn.LocalDescription()
	if local == nil || local.SDP == "" {
		return fail(ErrSDPGeneration, "no local description after gathering", nil)
	}
	o.inspectCandidates(local.SDP)

	// 5. Exchange. Marking the offer as sent before the POST lets trickling
	// start as soon as a peer id is assigned.
	o.mu.Lock()
	o.trickle = offerSent
	o.mu.Unlock()
	o.setPhase(PhaseAwaitingAnswer)

	answer, err := o.signaler.SendOffer(ctx, *local)
	if err != nil {
		return fail(ErrSignaling, "send offer", err)
	}

	o.mu.Lock()
	o.peerID = answer.PeerID
	if answer.PeerID != "" {
		o.trickler = signaling.NewTrickler(o.signaler, answer.PeerID)
		o.trickle = peerAssigned
	}
	o.mu.Unlock()
	util.LogInfo("station peer_id: %q", answer.PeerID)

	if err := conn.SetRemoteDescription(answer.Description); err != nil {
		return fail(ErrRemoteDescription, "set remote description", err)
	}

	util.LogSuccess("signaling complete, waiting for ICE connectivity...")
	return nil
}

func (o *Orchestrator) registerSinks(conn transport.PeerConnection) {
	conn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		util.LogInfo("ICE connection state: %s", state)
		switch state {
		case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
			o.setPhase(PhaseConnected)
		case webrtc.ICEConnectionStateFailed:
			o.setPhase(PhaseFailed)
		}
	})

	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogInfo("connection state: %s", state)
	})

	conn.OnTrack(func(stream transport.MediaStream) {
		util.LogInfo("track received, kind: %s", stream.Kind)
		if stream.ID == "" {
			util.LogWarning("track event received but no stream")
			return
		}
		if o.observers.Stream == nil {
			util.LogWarning("no stream observer registered, dropping stream %s", stream.ID)
			return
		}
		o.observers.Stream(stream)
	})

	conn.OnDataChannel(func(dc transport.DataChannel) {
		o.router.Attach(dc)
	})
}

// handleCandidate trickles late candidates once a peer id is held. Earlier
// candidates end up in the local description on their own.
func (o *Orchestrator) handleCandidate(c *webrtc.ICECandidateInit) {
	if c == nil {
		util.LogInfo("ICE gathering complete (null candidate)")
		return
	}
	util.Stats.AddGathered()
	util.LogDebug("ICE candidate gathered: %s", c.Candidate)

	o.mu.Lock()
	if o.trickle != peerAssigned || o.closed {
		o.mu.Unlock()
		return
	}
	tr := o.trickler
	o.wg.Add(1)
	o.mu.Unlock()

	cand := *c
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(o.ctx, trickleTimeout)
		defer cancel()
		tr.Send(ctx, cand)
	}()
}

func (o *Orchestrator) inspectCandidates(sdp string) {
	census := transport.CountCandidates(sdp)
	util.LogFields("sending offer", map[string]any{
		"candidates": census.Total,
		"mdns":       census.MDNS,
		"routable":   census.Routable,
	})

	if census.Total == 0 {
		util.LogWarning("no ICE candidates in offer, the station will likely be unable to connect")
		return
	}
	if census.MDNSOnly() {
		util.LogWarning("all %d candidates are mDNS (.local), stations without mDNS cannot resolve them", census.MDNS)
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	if o.phase == p {
		o.mu.Unlock()
		return
	}
	o.phase = p
	o.mu.Unlock()

	util.LogDebug("phase: %s", p)
	if o.observers.Status != nil {
		o.observers.Status(p)
	}
}

// Phase returns the last published phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// PeerID returns the station-assigned peer id, or "" before assignment.
func (o *Orchestrator) PeerID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.peerID
}

// Close stops trickling, waits for in-flight candidate POSTs, and closes
// the underlying connection.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	conn := o.conn
	o.mu.Unlock()

	// Each POST is bounded by trickleTimeout, so the wait is too.
	o.wg.Wait()
	o.cancel()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
