// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture records control channel frames to a file and reads
// them back.
//
// A capture file is a CBOR sequence (RFC 8742). The first item is a
// [Header] naming the format, the capture session, and the socket the
// frames travelled over. Every following item is a [Record] holding
// one frame body, optionally compressed with LZ4 or zstd, together
// with a BLAKE3 digest of the uncompressed body. [Reader] verifies the
// digest of every frame it returns.
//
// [Writer] implements controlchannel.FrameRecorder. Recording is
// best-effort: a failed write is logged once and disables the writer,
// and never reaches the control channel.
package capture
