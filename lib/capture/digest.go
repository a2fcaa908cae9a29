// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is the BLAKE3 keyed hash of an uncompressed frame body.
type Digest [32]byte

// frameDomainKey separates frame digests from any other BLAKE3 use of
// the same bytes. Readable ASCII, zero-padded to 32 bytes. Changing it
// invalidates every existing capture file.
var frameDomainKey = [32]byte{
	'v', 'i', 'b', 'e', 't', 'u', 'n', 'n', 'e', 'l', '.', 'c', 'a', 'p', 't', 'u',
	'r', 'e', '.', 'f', 'r', 'a', 'm', 'e', 0, 0, 0, 0, 0, 0, 0, 0,
}

// DigestFrame computes the digest stored with a frame record.
func DigestFrame(body []byte) Digest {
	hasher, err := blake3.NewKeyed(frameDomainKey[:])
	if err != nil {
		// Only returned for a key of the wrong length.
		panic("capture: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(body)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func digestFromBytes(raw []byte) (Digest, error) {
	var digest Digest
	if len(raw) != len(digest) {
		return digest, fmt.Errorf("frame digest is %d bytes, want %d", len(raw), len(digest))
	}
	copy(digest[:], raw)
	return digest, nil
}
