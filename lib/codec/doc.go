// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec encodes the files vtctl writes for itself, chiefly
// frame captures, as CBOR.
//
// Nothing here touches the control channel wire format. The daemon
// defines that as length-prefixed JSON, and lib/framing handles it.
// A capture needs each frame's payload kept byte-exact next to its
// direction and timestamp, which CBOR byte strings give without the
// base64 round trip JSON would need.
//
// Output is deterministic (RFC 8949 core deterministic encoding) and
// time.Time values are written as RFC 3339 strings with nanoseconds.
// A capture file is a CBOR sequence (RFC 8742): write it with
// NewEncoder and read it back with NewDecoder.
//
// Structs that also appear in JSON output carry only `json` tags;
// the encoder falls back to them when no `cbor` tag is present.
package codec
