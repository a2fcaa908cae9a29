// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/vibetunnel/vibetunnel/cmd/vtctl/cli"
	"github.com/vibetunnel/vibetunnel/controlchannel"
	"github.com/vibetunnel/vibetunnel/lib/capture"
	"github.com/vibetunnel/vibetunnel/lib/config"
)

// globalFlags are accepted by every command that opens a connection.
type globalFlags struct {
	configPath  string
	socketPath  string
	logLevel    string
	capturePath string
}

func (g *globalFlags) register(flagSet *pflag.FlagSet) {
	*g = globalFlags{}
	flagSet.StringVar(&g.configPath, "config", "", "config file (default: $VIBETUNNEL_CONFIG, else built-in defaults)")
	flagSet.StringVar(&g.socketPath, "socket", "", "control socket path (overrides config)")
	flagSet.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flagSet.StringVar(&g.capturePath, "capture", "", "record every frame to this capture file (overrides config)")
}

// loadConfig resolves the configuration: an explicit --config file,
// else VIBETUNNEL_CONFIG, else defaults. Flags are applied on top.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case g.configPath != "":
		cfg, err = config.LoadFile(g.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if g.socketPath != "" {
		cfg.Control.SocketPath = g.socketPath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.capturePath != "" {
		cfg.Capture.Path = g.capturePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// session is a connected Manager plus the resources it owns.
type session struct {
	manager  *controlchannel.Manager
	recorder *capture.Writer
	logger   *slog.Logger
	messages chan []byte
}

// sessionMessageBuffer bounds inbound messages waiting for the command.
// OnMessage reports overflow as an unhandled message.
const sessionMessageBuffer = 256

var errMessageBufferFull = errors.New("inbound message buffer full")

// openSession builds a Manager from the resolved config, installs
// frame capture when configured, and starts connecting.
func (g *globalFlags) openSession(command string, options ...controlchannel.ManagerOption) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	level, _ := cfg.LogLevel()
	logger := cli.NewCommandLogger(level).With("command", command)

	s := &session{
		logger:   logger,
		messages: make(chan []byte, sessionMessageBuffer),
	}

	if cfg.Capture.Path != "" {
		compression, _ := cfg.CaptureCompression()
		recorder, err := capture.Create(cfg.Capture.Path, capture.Options{
			SocketPath:  cfg.Control.SocketPath,
			Compression: compression,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		s.recorder = recorder
		options = append(options, controlchannel.WithFrameRecorder(recorder))
		logger.Info("capturing frames",
			"path", cfg.Capture.Path,
			"capture_session", recorder.SessionID(),
		)
	}

	manager, err := controlchannel.NewManager(cfg.ControlChannel(), controlchannel.Handlers{
		OnMessage: func(payload []byte) error {
			select {
			case s.messages <- payload:
				return nil
			default:
				return errMessageBufferFull
			}
		},
		OnStateChange: func(state controlchannel.ConnectionState) {
			logger.Debug("connection state changed", "state", state.String())
		},
	}, logger, options...)
	if err != nil {
		s.closeRecorder()
		return nil, err
	}
	s.manager = manager
	manager.Connect()
	return s, nil
}

// waitReady blocks until the connection is up or ctx ends.
func (s *session) waitReady(ctx context.Context) error {
	if err := s.manager.WaitReady(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("control socket not ready (last state: %s): %w", s.manager.State(), err)
		}
		return err
	}
	return nil
}

func (s *session) close() {
	s.manager.Disconnect()
	s.manager.Close()
	s.closeRecorder()
}

func (s *session) closeRecorder() {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Close(); err != nil {
		s.logger.Warn("closing capture file failed", "error", err)
	}
}
