// Command station is the sender-side signaling endpoint.
//
// Answers viewer offers over HTTP, accepts trickled candidates, and pushes
// telemetry and detection frames to every connected viewer. Each viewer also
// receives a camera track looped from --video-file, or synthetic frames. With
// --demo it generates a synthetic route for testing viewers without hardware.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/roverlink/internal/clock"
	"github.com/1ureka/roverlink/internal/config"
	"github.com/1ureka/roverlink/internal/station"
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
	def.ICEServers = nil
	cmd := &cobra.Command{
		Use:           "station",
		Short:         "Serve WebRTC signaling and publish telemetry to viewers",
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
	config.AddStationFlags(cmd, def)
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Station v%s", version))
	pterm.Println()

	st := station.New(station.Options{
		ICEServers:    cfg.ICEServers,
		GatherTimeout: cfg.GatherTimeout,
		VideoFile:     cfg.VideoFile,
	})
	defer st.Close()

	addr, err := st.Start(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to start station: %w", err)
	}
	util.LogSuccess("viewers can connect to http://%s", addr)

	if cfg.Demo {
		go station.RunDemo(ctx, st, clock.Real(), cfg.DemoInterval)
	}

	<-ctx.Done()
	util.LogInfo("station shutting down")
	return nil
}
