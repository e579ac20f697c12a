package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/roverlink/internal/clock"
	"github.com/1ureka/roverlink/internal/util"
)

// DefaultGatherTimeout bounds how long WaitForGathering blocks.
const DefaultGatherTimeout = 5000 * time.Millisecond

// GatherResult reports how WaitForGathering resolved. Both flags are false
// when ctx was cancelled first.
type GatherResult struct {
	Completed bool
	TimedOut  bool
	Elapsed   time.Duration
}

// WaitForGathering blocks until g reports ICEGatheringStateComplete or
// timeout elapses, whichever comes first. It never fails: a timeout with
// partial candidates is a normal outcome and the caller proceeds with
// whatever the local description holds.
//
// If gathering is already complete no timer is armed. Otherwise the timer is
// stopped as soon as gathering completes.
func WaitForGathering(ctx context.Context, g Gatherer, clk clock.Clock, timeout time.Duration) GatherResult {
	if g.ICEGatheringState() == webrtc.ICEGatheringStateComplete {
		util.LogDebug("ICE gathering already complete")
		return GatherResult{Completed: true}
	}

	start := clk.Now()
	done := make(chan GatherResult, 1)
	var once sync.Once
	finish := func(r GatherResult) {
		once.Do(func() { done <- r })
	}

	timer := clk.AfterFunc(timeout, func() {
		finish(GatherResult{TimedOut: true})
	})
	defer timer.Stop()

	g.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		util.LogDebug("ICE gathering state: %s", state)
		if state == webrtc.ICEGatheringStateComplete {
			finish(GatherResult{Completed: true})
		}
	})

	// Gathering may have finished between the first check and registration.
	if g.ICEGatheringState() == webrtc.ICEGatheringStateComplete {
		finish(GatherResult{Completed: true})
	}

	var res GatherResult
	select {
	case res = <-done:
	case <-ctx.Done():
		util.LogWarning("ICE gathering wait cancelled: %v", ctx.Err())
	}
	res.Elapsed = clk.Now().Sub(start)

	if res.TimedOut {
		util.LogWarning("ICE gathering timed out after %s (state: %s), continuing with gathered candidates",
			timeout, g.ICEGatheringState())
	}
	return res
}
