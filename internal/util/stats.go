// Package util provides the shared logger and session counters.
package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/roverlink/internal/clock"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide negotiation/data counter.
var Stats = &stats{}

type stats struct {
	CandidatesGathered atomic.Int64 // local candidates emitted by the connection
	CandidatesTrickled atomic.Int64 // candidates delivered to /candidate
	TrickleFailures    atomic.Int64 // candidates whose POST failed (swallowed)
	TrickleSkipped     atomic.Int64 // candidates not sent because no peer id was held
	FramesRouted       atomic.Int64 // aux-channel frames dispatched to an observer
	FramesDropped      atomic.Int64 // aux-channel frames that failed to decode
}

func (s *stats) AddGathered()    { s.CandidatesGathered.Add(1) }
func (s *stats) AddTrickled()    { s.CandidatesTrickled.Add(1) }
func (s *stats) AddTrickleFail() { s.TrickleFailures.Add(1) }
func (s *stats) AddTrickleSkip() { s.TrickleSkipped.Add(1) }
func (s *stats) AddRouted()      { s.FramesRouted.Add(1) }
func (s *stats) AddDropped()     { s.FramesDropped.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Gathered, Trickled, TrickleFailures, TrickleSkipped int64
	Routed, Dropped                                     int64
}

// Snapshot loads all counters.
func (s *stats) Snapshot() Snapshot {
	return Snapshot{
		Gathered:        s.CandidatesGathered.Load(),
		Trickled:        s.CandidatesTrickled.Load(),
		TrickleFailures: s.TrickleFailures.Load(),
		TrickleSkipped:  s.TrickleSkipped.Load(),
		Routed:          s.FramesRouted.Load(),
		Dropped:         s.FramesDropped.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// ReportInterval is how often StartStatsReporter checks the counters.
const ReportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs session statistics
// every ReportInterval, but only when something changed. It stops when ctx
// is cancelled.
func StartStatsReporter(ctx context.Context, clk clock.Clock) {
	go func() {
		ticker := clk.NewTicker(ReportInterval)
		defer ticker.Stop()

		var prev Snapshot
		for {
			select {
			case <-ticker.C:
				cur := Stats.Snapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(prev, cur))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats renders the delta between two snapshots for the logger.
func formatStats(prev, cur Snapshot) string {
	return fmt.Sprintf("ICE: %3d gathered, %3d trickled (%d failed, %d skipped) | Frames: %5d routed, %3d dropped",
		cur.Gathered-prev.Gathered,
		cur.Trickled-prev.Trickled,
		cur.TrickleFailures-prev.TrickleFailures,
		cur.TrickleSkipped-prev.TrickleSkipped,
		cur.Routed-prev.Routed,
		cur.Dropped-prev.Dropped,
	)
}
