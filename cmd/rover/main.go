// Command rover is the viewer-side CLI.
//
// Negotiates a WebRTC session with a station over HTTP signaling, receives
// its video track and auxiliary telemetry/detection frames, and optionally
// re-serves the live state to dashboards over a WebSocket feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/roverlink/internal/clock"
	"github.com/1ureka/roverlink/internal/config"
	"github.com/1ureka/roverlink/internal/monitor"
	"github.com/1ureka/roverlink/internal/session"
	"github.com/1ureka/roverlink/internal/store"
	"github.com/1ureka/roverlink/internal/transport"
	"github.com/1ureka/roverlink/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	def := config.Default()
	cmd := &cobra.Command{
		Use:           "rover",
		Short:         "Receive a station's video and telemetry over WebRTC",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd, def)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.AddRoverFlags(cmd, def)
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Debug {
		util.EnableDebug()
	}
	if cfg.SignalingURL == "" {
		return errors.New("missing --signaling-url")
	}

	pterm.Info.Println(fmt.Sprintf("Rover v%s", version))
	pterm.Println()

	st := store.New(cfg.PathLimit)
	if cfg.MonitorAddr != "" {
		mon := monitor.NewServer(st)
		addr, err := mon.Start(cfg.MonitorAddr)
		if err != nil {
			return err
		}
		defer mon.Close()
		util.LogSuccess("dashboard feed at ws://%s/ws", addr)
	}

	obs := st.Observers()
	obs.Stream = func(ms transport.MediaStream) {
		util.LogSuccess("receiving %s stream %s", ms.Kind, ms.ID)
		go drainTrack(ctx, ms)
	}

	o, err := session.New(session.Options{
		SignalingURL:   cfg.SignalingURL,
		ICEServers:     cfg.ICEServers,
		GatherTimeout:  cfg.GatherTimeout,
		ControlChannel: cfg.ControlChannel,
		Observers:      obs,
	})
	if err != nil {
		return err
	}
	defer o.Close()

	events, cancel := st.Subscribe()
	defer cancel()

	util.StartStatsReporter(ctx, clock.Real())
	if err := o.Connect(ctx); err != nil {
		return err
	}

	for {
		select {
		case ev := <-events:
			if ev.Kind == store.KindStatus && *ev.Status == session.PhaseFailed {
				return errors.New("ICE connection failed")
			}
		case <-ctx.Done():
			util.LogInfo("successfully closed rover session")
			return nil
		}
	}
}

// drainTrack reads RTP until the track ends so the receive buffer never
// fills. Rendering is left to whatever consumes the dashboard feed.
func drainTrack(ctx context.Context, ms transport.MediaStream) {
	track := ms.Track()
	if track == nil {
		return
	}
	var packets int
	for ctx.Err() == nil {
		if _, _, err := track.ReadRTP(); err != nil {
			util.LogInfo("stream %s ended after %d packets: %v", ms.ID, packets, err)
			return
		}
		packets++
	}
}
