// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which vtctl build is running.
//
// Release builds stamp [GitCommit], [GitDirty] and [BuildTime]:
//
//	go build -ldflags "-X github.com/vibetunnel/vibetunnel/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// A plain go build from a checkout leaves them empty, and the
// revision, modified flag and commit time recorded by the go command
// are used instead. Test binaries carry neither, so they report
// "unknown".
package version
