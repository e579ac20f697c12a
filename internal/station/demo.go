package station

import (
	"context"
	"math"
	"time"

	"github.com/1ureka/roverlink/internal/clock"
	"github.com/1ureka/roverlink/internal/protocol"
	"github.com/1ureka/roverlink/internal/util"
)

// Publisher accepts frames for connected viewers.
type Publisher interface {
	Publish(msg *protocol.Message) (int, error)
}

var _ Publisher = (*Station)(nil)

// demo route: a small loop around a fixed origin.
const (
	demoLat      = 25.0330
	demoLon      = 121.5654
	demoRadius   = 0.0005 // degrees
	demoSteps    = 120    // ticks per lap
	detectionGap = 5      // one detection batch every N ticks
)

// RunDemo publishes synthetic telemetry every interval, plus a detection batch
// every few ticks, until ctx is cancelled.
func RunDemo(ctx context.Context, pub Publisher, clk clock.Clock, interval time.Duration) {
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	util.LogInfo("demo mode: publishing synthetic frames every %s", interval)
	for step := 0; ; step++ {
		select {
		case <-ticker.C:
			if _, err := pub.Publish(demoTelemetry(step)); err != nil {
				util.LogWarning("demo publish stopped: %v", err)
				return
			}
			if step%detectionGap == 0 {
				if _, err := pub.Publish(demoDetections(step)); err != nil {
					util.LogWarning("demo publish stopped: %v", err)
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func demoTelemetry(step int) *protocol.Message {
	angle := 2 * math.Pi * float64(step%demoSteps) / demoSteps
	return &protocol.Message{
		Type: protocol.TypeTelemetry,
		Telemetry: &protocol.Telemetry{
			Latitude:  demoLat + demoRadius*math.Sin(angle),
			Longitude: demoLon + demoRadius*math.Cos(angle),
			Heading:   math.Mod(360-angle*180/math.Pi, 360),
			Speed:     1.5,
			Battery:   100 - float64(step%1000)/10,
		},
	}
}

func demoDetections(step int) *protocol.Message {
	x := 0.1 + 0.6*float64(step%10)/10
	return &protocol.Message{
		Type: protocol.TypeDetections,
		Detections: []protocol.Detection{
			{Class: "person", Confidence: 0.87, X: x, Y: 0.4, W: 0.1, H: 0.3},
		},
	}
}
