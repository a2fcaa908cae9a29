// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets, whose paths are limited to 107 bytes.
//
// [RequireReceive], [RequireClosed], and [RequireEventually] bound
// every wait in a test with a wall-clock timeout so a broken test
// fails instead of hanging. They are the only place tests use real
// timeouts; component timing runs on lib/clock.
//
// [UniqueID] returns distinct identifiers for message payloads.
//
// All helpers call t.Fatalf on failure.
package testutil
