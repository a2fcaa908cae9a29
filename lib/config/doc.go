// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for VibeTunnel
// control channel clients.
//
// Configuration is loaded from a single file named by either the
// VIBETUNNEL_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no ~/.config discovery and no
// automatic file search. Running without a file uses [Default].
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values; command-line flags
// are applied by the caller after loading.
//
// Key exports:
//
//   - [Config] -- master struct with Control, Capture, and Log sections
//   - [Default] -- returns a Config matching controlchannel.DefaultConfig
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.ControlChannel] -- converts to a controlchannel.Config
package config
