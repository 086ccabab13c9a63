// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

// randomUint16Number returns a random uint16 in a specified input range.  Note
// that the range is in zeroth ordering; if you pass it 1800, you will get
// values from 0 to 1799.
func randomUint16Number(max uint16) uint16 {
	// In order to avoid modulo bias and ensure every possible outcome in
	// [0, max) has equal probability, the random number must be sampled
	// from a random source that has a range limited to a multiple of the
	// modulus.
	var randomNumber uint16
	limitRange := (math.MaxUint16 / max) * max
	for {
		if err := binary.Read(rand.Reader, binary.LittleEndian, &randomNumber); err != nil {
			log.Error().Err(err).Msg("cannot read random number from reader")
		}
		if randomNumber < limitRange {
			return (randomNumber % max)
		}
	}
}

// randomPeerID returns a non-zero node id.
func randomPeerID() uint64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			log.Error().Err(err).Msg("cannot read random peer id")
		}
		if id := binary.LittleEndian.Uint64(b[:]); id != 0 {
			return id
		}
	}
}
