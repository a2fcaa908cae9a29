// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the vtctl command tree.
package commands
