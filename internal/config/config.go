// Package config holds the CLI configuration shared by the rover and
// station commands. Values come from flags, ROVERLINK_* environment variables
// and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/1ureka/roverlink/internal/store"
	"github.com/1ureka/roverlink/internal/transport"
)

// EnvPrefix is prepended to every environment key, e.g.
// ROVERLINK_SIGNALING_URL.
const EnvPrefix = "ROVERLINK"

// Config stores all parameters for either command. Fields a command does
// not register stay at their defaults.
type Config struct {
	SignalingURL   string        `mapstructure:"signaling-url"`   // rover: station base or /offer URL
	ICEServers     []string      `mapstructure:"ice-server"`      // STUN/TURN URLs
	GatherTimeout  time.Duration `mapstructure:"gather-timeout"`  // bounded ICE wait
	ControlChannel string        `mapstructure:"control-channel"` // rover: outbound channel label, "" to disable
	MonitorAddr    string        `mapstructure:"monitor"`         // rover: dashboard feed address, "" to disable
	PathLimit      int           `mapstructure:"path-limit"`      // rover: retained path points
	ListenAddr     string        `mapstructure:"listen"`          // station: HTTP listen address
	Demo           bool          `mapstructure:"demo"`            // station: publish synthetic frames
	DemoInterval   time.Duration `mapstructure:"demo-interval"`   // station: synthetic frame period
	VideoFile      string        `mapstructure:"video-file"`      // station: IVF file looped to viewers
	Debug          bool          `mapstructure:"debug"`
	File           string        `mapstructure:"config"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		ICEServers:     transport.DefaultICEServers,
		GatherTimeout:  transport.DefaultGatherTimeout,
		ControlChannel: "control",
		PathLimit:      store.DefaultPathLimit,
		ListenAddr:     ":8080",
		DemoInterval:   time.Second,
	}
}

// AddCommonFlags registers the flags both commands share.
func AddCommonFlags(cmd *cobra.Command, def *Config) {
	cmd.Flags().StringSlice("ice-server", def.ICEServers, "STUN/TURN server URL (repeatable)")
	cmd.Flags().Duration("gather-timeout", def.GatherTimeout, "Maximum time to wait for ICE gathering")
	cmd.Flags().Bool("debug", def.Debug, "Enable debug logging")
	cmd.Flags().String("config", def.File, "Config file (toml, yaml or json)")
}

// AddRoverFlags registers the viewer-side flags.
func AddRoverFlags(cmd *cobra.Command, def *Config) {
	AddCommonFlags(cmd, def)
	cmd.Flags().StringP("signaling-url", "u", def.SignalingURL, "Station URL, e.g. http://10.0.0.2:8080")
	cmd.Flags().String("control-channel", def.ControlChannel, "Outbound data channel label (empty to disable)")
	cmd.Flags().StringP("monitor", "m", def.MonitorAddr, "Serve the dashboard feed on this address")
	cmd.Flags().Int("path-limit", def.PathLimit, "Number of path points kept for dashboards")
}

// AddStationFlags registers the station-side flags.
func AddStationFlags(cmd *cobra.Command, def *Config) {
	AddCommonFlags(cmd, def)
	cmd.Flags().StringP("listen", "l", def.ListenAddr, "HTTP listen address")
	cmd.Flags().Bool("demo", def.Demo, "Publish synthetic telemetry and detections")
	cmd.Flags().Duration("demo-interval", def.DemoInterval, "Period between synthetic frames")
	cmd.Flags().String("video-file", def.VideoFile, "IVF file to stream as the camera (synthetic frames if empty)")
}

// Load resolves cmd's flags against the environment and config file.
func Load(cmd *cobra.Command, def *Config) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file %s not found", file)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := *def
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
