// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command-tree framework behind vtctl:
// nested [Command] values dispatched by name, per-command pflag sets
// parsed lazily, generated help, typo suggestions for commands and
// flags, and the terminal-aware [NewCommandLogger].
package cli
