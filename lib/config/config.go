// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vibetunnel/vibetunnel/controlchannel"
	"github.com/vibetunnel/vibetunnel/lib/capture"
)

// EnvironmentVariable names the config file for Load.
const EnvironmentVariable = "VIBETUNNEL_CONFIG"

// Config is the master configuration for a control channel client.
type Config struct {
	// Control configures the connection to the daemon.
	Control ControlConfig `yaml:"control"`

	// Capture configures optional frame recording.
	Capture CaptureConfig `yaml:"capture"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
}

// ControlConfig configures the control socket connection.
type ControlConfig struct {
	// SocketPath is the daemon's Unix socket.
	// Default: ~/.vibetunnel/control.sock
	SocketPath string `yaml:"socket_path"`

	KeepAlive KeepAliveConfig `yaml:"keepalive"`
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// PendingCapacity bounds messages queued while disconnected.
	// Default: 100
	PendingCapacity int `yaml:"pending_capacity"`

	// MaxFrameSize is the exclusive bound on a message body in bytes.
	// Default: 10000000
	MaxFrameSize int `yaml:"max_frame_size"`

	// ReceiveChunkSize is the largest single socket read.
	// Default: 65536
	ReceiveChunkSize int `yaml:"receive_chunk_size"`

	// SocketBufferSize is requested for SO_SNDBUF and SO_RCVBUF.
	// Default: 1048576
	SocketBufferSize int `yaml:"socket_buffer_size"`

	// ConnectTimeout bounds one connect attempt.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// KeepAliveConfig configures ping/pong liveness checking.
type KeepAliveConfig struct {
	// Interval is the time between pings. Default: 30s
	Interval time.Duration `yaml:"interval"`

	// TimeoutMultiplier: the connection is considered dead after
	// Interval times this value without a pong. Default: 2
	TimeoutMultiplier int `yaml:"timeout_multiplier"`
}

// ReconnectConfig configures exponential backoff between attempts.
type ReconnectConfig struct {
	// InitialDelay. Default: 1s
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the delay. Default: 30s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier grows the delay after each failed attempt.
	// Default: 1.5
	Multiplier float64 `yaml:"multiplier"`
}

// CaptureConfig configures frame capture.
type CaptureConfig struct {
	// Path enables capture when non-empty.
	Path string `yaml:"path"`

	// Compression is one of none, lz4, zstd, auto. Default: auto
	Compression string `yaml:"compression"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. Loading a file overlays
// the fields it sets onto these values.
func Default() *Config {
	control := controlchannel.DefaultConfig()
	return &Config{
		Control: ControlConfig{
			SocketPath: control.SocketPath,
			KeepAlive: KeepAliveConfig{
				Interval:          control.KeepAliveInterval,
				TimeoutMultiplier: control.KeepAliveTimeoutMultiplier,
			},
			Reconnect: ReconnectConfig{
				InitialDelay: control.ReconnectInitialDelay,
				MaxDelay:     control.ReconnectMaxDelay,
				Multiplier:   control.ReconnectMultiplier,
			},
			PendingCapacity:  control.PendingCapacity,
			MaxFrameSize:     control.MaxFrameSize,
			ReceiveChunkSize: control.ReceiveChunkSize,
			SocketBufferSize: control.SocketBufferSize,
			ConnectTimeout:   control.ConnectTimeout,
		},
		Capture: CaptureConfig{
			Compression: "auto",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the file named by VIBETUNNEL_CONFIG.
// There is no fallback: if the variable is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your vibetunnel.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Unknown
// keys are rejected so typos surface instead of silently keeping a
// default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: defaults stand.
			return nil
		}
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Control.SocketPath = expandVars(c.Control.SocketPath, vars)
	c.Capture.Path = expandVars(c.Capture.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, including every
// constraint controlchannel.Config enforces.
func (c *Config) Validate() error {
	var errs []error

	if err := c.ControlChannel().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("control: %w", err))
	}
	if _, err := c.CaptureCompression(); err != nil {
		errs = append(errs, fmt.Errorf("capture.compression: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// ControlChannel converts the control section to a
// controlchannel.Config. Internal pacing intervals keep their
// controlchannel defaults.
func (c *Config) ControlChannel() controlchannel.Config {
	control := controlchannel.DefaultConfig()
	control.SocketPath = c.Control.SocketPath
	control.KeepAliveInterval = c.Control.KeepAlive.Interval
	control.KeepAliveTimeoutMultiplier = c.Control.KeepAlive.TimeoutMultiplier
	control.ReconnectInitialDelay = c.Control.Reconnect.InitialDelay
	control.ReconnectMaxDelay = c.Control.Reconnect.MaxDelay
	control.ReconnectMultiplier = c.Control.Reconnect.Multiplier
	control.PendingCapacity = c.Control.PendingCapacity
	control.MaxFrameSize = c.Control.MaxFrameSize
	control.ReceiveChunkSize = c.Control.ReceiveChunkSize
	control.SocketBufferSize = c.Control.SocketBufferSize
	control.ConnectTimeout = c.Control.ConnectTimeout
	return control
}

// CaptureCompression parses Capture.Compression.
func (c *Config) CaptureCompression() (capture.Compression, error) {
	return capture.ParseCompression(c.Capture.Compression)
}

// LogLevel parses Log.Level. The empty string means info.
func (c *Config) LogLevel() (slog.Level, error) {
	return ParseLogLevel(c.Log.Level)
}

// ParseLogLevel parses debug, info, warn, or error.
func ParseLogLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", name)
	}
}
