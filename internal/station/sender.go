package station

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/util"
)

const (
	highWaterMark  = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark   = 64 * 1024  // resume sending when bufferedAmount drops below this
	sendBufferSize = 64         // outgoing frame channel capacity
)

// sender serializes all writes to one DataChannel behind an open gate and
// bufferedAmount backpressure.
type sender struct {
	label       string
	inbox       chan []byte
	drainSignal chan struct{}
	open        chan struct{}
}

// newSender wires the open and backpressure callbacks on dc and starts the
// write loop. The loop exits when ctx is cancelled.
func newSender(ctx context.Context, dc *webrtc.DataChannel) *sender {
	s := &sender{
		label:       dc.Label(),
		inbox:       make(chan []byte, sendBufferSize),
		drainSignal: make(chan struct{}, 1),
		open:        make(chan struct{}),
	}

	dc.OnOpen(func() { close(s.open) })
	dc.SetBufferedAmountLowThreshold(uint64(lowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drainSignal <- struct{}{}:
		default:
		}
	})

	go s.loop(ctx, dc)

	return s
}

func (s *sender) loop(ctx context.Context, dc *webrtc.DataChannel) {
	select {
	case <-s.open:
	case <-ctx.Done():
		return
	}
	util.LogDebug("data channel %q open", s.label)

	for {
		select {
		case data := <-s.inbox:
			if dc.BufferedAmount() > uint64(highWaterMark) {
				select {
				case <-s.drainSignal:
				case <-ctx.Done():
					return
				}
			}
			if err := dc.SendText(string(data)); err != nil {
				util.LogError("failed to send frame on %q: %v", s.label, err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// isOpen reports whether the channel has opened.
func (s *sender) isOpen() bool {
	select {
	case <-s.open:
		return true
	default:
		return false
	}
}

// send enqueues data without blocking. It reports false when the frame was
// dropped because the channel is not open or the inbox is full.
func (s *sender) send(data []byte) bool {
	if !s.isOpen() {
		return false
	}
	select {
	case s.inbox <- data:
		return true
	default:
		return false
	}
}
