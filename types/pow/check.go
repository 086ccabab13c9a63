// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"math/big"

	"gitlab.com/jaxnet/cnoted/types/chainhash"
)

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// HashToBig interprets the hash as a little-endian 256-bit number.
func HashToBig(hash *chainhash.Hash) *big.Int {
	buf := *hash
	blen := len(buf)
	for i := 0; i < blen/2; i++ {
		buf[i], buf[blen-1-i] = buf[blen-1-i], buf[i]
	}

	return new(big.Int).SetBytes(buf[:])
}

// CheckHash reports whether hash satisfies difficulty, that is whether
// hash * difficulty stays below 2^256.
func CheckHash(hash chainhash.Hash, difficulty uint64) bool {
	if difficulty == 0 {
		return false
	}
	product := HashToBig(&hash)
	product.Mul(product, new(big.Int).SetUint64(difficulty))
	return product.Cmp(twoPow256) < 0
}
