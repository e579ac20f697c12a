package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func roverCmd(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "rover"}
	AddRoverFlags(cmd, Default())
	cmd.Flags().Parse(args)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(roverCmd(), Default())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GatherTimeout != 5*time.Second {
		t.Errorf("gather timeout = %s", cfg.GatherTimeout)
	}
	if cfg.ControlChannel != "control" {
		t.Errorf("control channel = %q", cfg.ControlChannel)
	}
	if len(cfg.ICEServers) != 1 {
		t.Errorf("ice servers = %v", cfg.ICEServers)
	}
}

func TestLoadFlags(t *testing.T) {
	cmd := roverCmd("-u", "http://10.0.0.2:8080", "--gather-timeout", "2s", "--ice-server", "stun:a", "--ice-server", "stun:b")
	cfg, err := Load(cmd, Default())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SignalingURL != "http://10.0.0.2:8080" {
		t.Errorf("url = %q", cfg.SignalingURL)
	}
	if cfg.GatherTimeout != 2*time.Second {
		t.Errorf("gather timeout = %s", cfg.GatherTimeout)
	}
	if len(cfg.ICEServers) != 2 || cfg.ICEServers[1] != "stun:b" {
		t.Errorf("ice servers = %v", cfg.ICEServers)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("ROVERLINK_SIGNALING_URL", "http://station.local:9000")
	t.Setenv("ROVERLINK_PATH_LIMIT", "42")

	cfg, err := Load(roverCmd(), Default())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SignalingURL != "http://station.local:9000" {
		t.Errorf("url = %q", cfg.SignalingURL)
	}
	if cfg.PathLimit != 42 {
		t.Errorf("path limit = %d", cfg.PathLimit)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.yaml")
	data := "signaling-url: http://from-file:8080\nmonitor: \":7070\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(roverCmd("--config", path, "-m", ":9090"), Default())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SignalingURL != "http://from-file:8080" {
		t.Errorf("url = %q", cfg.SignalingURL)
	}
	if cfg.MonitorAddr != ":9090" {
		t.Errorf("flag should win over file, monitor = %q", cfg.MonitorAddr)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := Load(roverCmd("--config", filepath.Join(t.TempDir(), "nope.yaml")), Default()); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
