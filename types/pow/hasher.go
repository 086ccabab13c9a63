// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

// Hasher computes the proof-of-work hash of a block hashing blob.  The
// variant selects the algorithm revision and comes from the block's major
// version.
type Hasher interface {
	PowHash(blob []byte, variant int) chainhash.Hash
}

// HasherFunc adapts a function to the Hasher interface.
type HasherFunc func(blob []byte, variant int) chainhash.Hash

func (f HasherFunc) PowHash(blob []byte, variant int) chainhash.Hash {
	return f(blob, variant)
}

// KeccakHasher hashes the blob with the fast hash, ignoring the variant.
// It is the default for networks that do not plug in a memory-hard
// algorithm, and it is what the test networks use.
var KeccakHasher Hasher = HasherFunc(func(blob []byte, _ int) chainhash.Hash {
	return chainhash.HashH(blob)
})

// Variant maps a block major version onto the proof-of-work variant.
func Variant(majorVersion uint8) int {
	if majorVersion < 7 {
		return 0
	}
	return int(majorVersion) - 6
}
