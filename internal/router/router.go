// Package router demultiplexes inbound auxiliary data-channel frames into
// typed telemetry and detection callbacks.
package router

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/protocol"
	"github.com/1ureka/roverlink/internal/util"
)

// DataChannel is the part of *webrtc.DataChannel the router consumes.
type DataChannel interface {
	Label() string
	OnMessage(func(msg webrtc.DataChannelMessage))
}

var _ DataChannel = (*webrtc.DataChannel)(nil)

// Handlers receive decoded payloads. A nil handler discards its frames.
type Handlers struct {
	Telemetry  func(protocol.Telemetry)
	Detections func([]protocol.Detection)
}

// Router dispatches frames to Handlers by their type discriminator.
type Router struct {
	handlers Handlers
}

// New creates a Router for the given handlers.
func New(h Handlers) *Router {
	return &Router{handlers: h}
}

// Attach registers the router as dc's message sink.
func (r *Router) Attach(dc DataChannel) {
	util.LogInfo("data channel attached: %s", dc.Label())
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		r.Route(msg.Data)
	})
}

// Route decodes one frame and dispatches it. Malformed frames are logged
// and dropped; unknown types are ignored. Route never panics on bad input.
func (r *Router) Route(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		util.Stats.AddDropped()
		util.LogWarning("dropping data channel frame: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeTelemetry:
		if r.handlers.Telemetry != nil {
			r.handlers.Telemetry(*msg.Telemetry)
		}
	case protocol.TypeDetections:
		if r.handlers.Detections != nil {
			r.handlers.Detections(msg.Detections)
		}
	default:
		util.LogDebug("ignoring frame of type %q", msg.Type)
		return
	}
	util.Stats.AddRouted()
}
